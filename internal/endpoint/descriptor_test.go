package endpoint

import (
	"context"
	"net/http"
	"testing"

	"github.com/prism-gateway/llm-router/internal/apitype"
	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalDescriptor() *Descriptor {
	return &Descriptor{
		Path:      "/api/chat",
		Method:    http.MethodPost,
		ApiTypes:  ApiTypeSet(domain.ApiTypeOpenAI),
		Operation: apitype.OpChat,
	}
}

func TestDescriptor_Validate_RejectsMissingPathOrMethod(t *testing.T) {
	d := minimalDescriptor()
	d.Path = ""
	assert.Error(t, d.Validate())

	d = minimalDescriptor()
	d.Method = ""
	assert.Error(t, d.Validate())
}

func TestDescriptor_Validate_RejectsCallForEachUserMsgWithDirectReturn(t *testing.T) {
	d := minimalDescriptor()
	d.CallForEachUserMsg = true
	d.DirectReturn = true
	d.PrepareResponseFunction = func(responses []*domain.Envelope, requestTexts []string) (*domain.Envelope, error) {
		return nil, nil
	}

	require.Error(t, d.Validate())
}

func TestDescriptor_Validate_RequiresPrepareResponseFunctionForMultiShot(t *testing.T) {
	d := minimalDescriptor()
	d.CallForEachUserMsg = true

	require.Error(t, d.Validate())
}

func TestDescriptor_Validate_RejectsNoApiTypes(t *testing.T) {
	d := minimalDescriptor()
	d.ApiTypes = nil

	require.Error(t, d.Validate())
}

func TestDescriptor_Validate_AcceptsWellFormedDescriptor(t *testing.T) {
	assert.NoError(t, minimalDescriptor().Validate())
}

func TestDescriptor_IsBuiltin(t *testing.T) {
	d := minimalDescriptor()
	assert.False(t, d.IsBuiltin())

	d.ApiTypes = ApiTypeSet(domain.ApiTypeBuiltin)
	assert.True(t, d.IsBuiltin())
}

func TestDescriptor_AcceptsApiType(t *testing.T) {
	d := minimalDescriptor()
	assert.True(t, d.AcceptsApiType(domain.ApiTypeOpenAI))
	assert.False(t, d.AcceptsApiType(domain.ApiTypeOllama))
}

type stubChooser struct{ name string }

func (s *stubChooser) Choose(ctx context.Context, modelName string, providers []domain.ProviderSpec) (domain.ProviderSpec, error) {
	return domain.ProviderSpec{}, nil
}

func (s *stubChooser) Release(ctx context.Context, modelName, providerID string) error { return nil }

func (s *stubChooser) Name() string { return s.name }

func TestDescriptor_ChooserFor_DefaultsToEngineChooser(t *testing.T) {
	d := minimalDescriptor()
	require.Nil(t, d.Chooser)

	def := &stubChooser{name: "default"}
	e := &Engine{Chooser: def}
	assert.Same(t, def, d.chooserFor(e))
}

func TestDescriptor_ChooserFor_PrefersOwnOverrideOverEngineDefault(t *testing.T) {
	d := minimalDescriptor()
	override := &stubChooser{name: "override"}
	d.Chooser = override

	e := &Engine{Chooser: &stubChooser{name: "default"}}
	assert.Same(t, override, d.chooserFor(e))
}
