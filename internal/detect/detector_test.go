package detect

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector(maxDepth int) *Detector {
	return NewDetector(nil, NewVisibilityFilter(nil), maxDepth)
}

func TestDetectFormsTopLevel(t *testing.T) {
	body := parseHTML(t, `
		<form id="login"><input name="user"></form>
		<div><form id="signup"><input name="email"></form></div>
		<form id="ghost" style="display:none"><input name="x"></form>
	`)

	forms := newTestDetector(0).DetectForms(body)
	require.Len(t, forms, 2)
	assert.Equal(t, "login", getAttr(forms[0], "id"))
	assert.Equal(t, "signup", getAttr(forms[1], "id"))
}

func TestDetectFormsNilContext(t *testing.T) {
	assert.Empty(t, newTestDetector(0).DetectForms(nil))
}

func TestDetectFormsInShadowTree(t *testing.T) {
	body := parseHTML(t, `
		<form id="outer"><input name="a"></form>
		<div id="host">
			<template shadowrootmode="open">
				<form id="inner"><input name="b"></form>
			</template>
		</div>
	`)

	forms := newTestDetector(0).DetectForms(body)
	require.Len(t, forms, 2)
	assert.Equal(t, "outer", getAttr(forms[0], "id"))
	assert.Equal(t, "inner", getAttr(forms[1], "id"))
}

func TestDetectFormsNestedShadowTrees(t *testing.T) {
	body := parseHTML(t, `
		<div>
			<template shadowrootmode="open">
				<form id="level1"><input name="a"></form>
				<section>
					<template shadowrootmode="closed">
						<form id="level2"><input name="b"></form>
					</template>
				</section>
			</template>
		</div>
	`)

	forms := newTestDetector(0).DetectForms(body)
	require.Len(t, forms, 2)
	assert.Equal(t, "level1", getAttr(forms[0], "id"))
	assert.Equal(t, "level2", getAttr(forms[1], "id"))
}

func TestDetectFormsShadowDepthBound(t *testing.T) {
	// Build a chain of hosts deeper than the recursion bound.
	inner := `<form id="deep"><input name="z"></form>`
	for i := 0; i < 5; i++ {
		inner = fmt.Sprintf(`<div><template shadowrootmode="open">%s</template></div>`, inner)
	}
	body := parseHTML(t, inner)

	// Bound of 2: the form at nesting depth 5 must not be reached, and the
	// scan must not error out.
	forms := NewDetector(nil, NewVisibilityFilter(nil), 2).DetectForms(body)
	assert.Empty(t, forms)

	// A generous bound reaches it.
	forms = newTestDetector(8).DetectForms(body)
	require.Len(t, forms, 1)
	assert.Equal(t, "deep", getAttr(forms[0], "id"))
}

func TestDetectFormsDeduplicatesByIdentity(t *testing.T) {
	body := parseHTML(t, `<form id="only"><input name="a"></form>`)

	d := newTestDetector(0)
	first := d.DetectForms(body)
	second := d.DetectForms(body)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Same(t, first[0], second[0], "same underlying container across scans")
}

func TestDetectFormsHiddenShadowForm(t *testing.T) {
	body := parseHTML(t, `
		<div style="display:none">
			<template shadowrootmode="open">
				<form id="buried"><input name="a"></form>
			</template>
		</div>
	`)

	forms := newTestDetector(0).DetectForms(body)
	assert.Empty(t, forms, "hidden host hides its shadow content")
}

func TestDetectFormsManyForms(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, `<form id="f%d"><input name="n%d"></form>`, i, i)
	}
	forms := newTestDetector(0).DetectForms(parseHTML(t, sb.String()))
	assert.Len(t, forms, 20)
}
