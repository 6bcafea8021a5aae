package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestCompile_CrossReferenceErrors(t *testing.T) {
	src := `
app: {
	tabs: ["home", "home"]
	flows: onboarding: steps: [{path: "welcome"}, {path: "done"}]
	links: [
		{pattern: "/a", route: "a", tab: "profile"},
		{pattern: "/b", flow: "checkout"},
		{pattern: "/c", flow: "onboarding", step: "payment"},
		{pattern: "/d", flow: "onboarding", step: ":step"},
		{pattern: "/e"},
		{pattern: "/a", route: "again"},
	]
}
`
	_, err := Parse([]byte(src), "refs.cue")
	require.Error(t, err)

	errs, ok := AsValidationErrors(err)
	require.True(t, ok)
	assert.Equal(t, []string{
		ErrDuplicateTab,
		ErrUnknownTab,
		ErrUnknownFlow,
		ErrUnknownStep,
		ErrUnboundCapture,
		ErrLinkTarget,
		ErrDuplicatePattern,
	}, codes(errs))
}

func TestValidate_CaptureStepBound(t *testing.T) {
	_, err := Parse([]byte(`
app: {
	flows: f: steps: [{path: "a"}, {path: "b"}]
	links: [{pattern: "/f/:step", flow: "f", step: ":step"}]
}
`), "ok.cue")
	assert.NoError(t, err)
}

func TestValidationError_Format(t *testing.T) {
	e := ValidationError{Field: "links[0]", Message: "unknown tab", Code: ErrUnknownTab}
	assert.Equal(t, "[E202] links[0]: unknown tab", e.Error())

	errs := ValidationErrors{e, {Field: "tabs[1]", Message: "duplicate tab", Code: ErrDuplicateTab}}
	assert.Equal(t, "[E202] links[0]: unknown tab; [E201] tabs[1]: duplicate tab", errs.Error())
}
