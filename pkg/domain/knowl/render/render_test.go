package render_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lmfdb/lmfdb/pkg/domain"
	"github.com/lmfdb/lmfdb/pkg/domain/knowl/render"
	"github.com/lmfdb/lmfdb/pkg/utils/try"
)

func loaderOf(knowls ...domain.Knowl) render.Loader {
	store := map[string]domain.Knowl{}
	for _, k := range knowls {
		store[k.Id] = k
	}
	return func(_ context.Context, id string) (domain.Knowl, bool, error) {
		k, ok := store[id]
		if !ok {
			return domain.Placeholder(id), false, nil
		}
		return k, true, nil
	}
}

func TestRenderer_Markdown_KeepsMath(t *testing.T) {
	testee := render.New(loaderOf())

	for _, math := range []string{
		`$a_1 * b_2$`,
		`$$\sum_{n=1}^\infty a_n q^n$$`,
		`\(E(\mathbb{Q})_{tors}\)`,
		`\[y^2 + xy = x^3 - x^2 - 2x\]`,
		`$x < y$`,
		`$\begin{matrix} a \\ b \\$`,
		`$\$ 5 \\$`,
	} {
		t.Run(math, func(t *testing.T) {
			content := "Let *E* be a curve with " + math + " and __bold__ text."
			got := try.To(testee.Markdown(content)).OrFatal(t)

			if !strings.Contains(got, math) {
				t.Errorf("math is changed:\n%s", got)
			}
			if !strings.Contains(got, "<em>E</em>") || !strings.Contains(got, "<strong>bold</strong>") {
				t.Errorf("markdown is not processed:\n%s", got)
			}
		})
	}
}

func TestRenderer_Render(t *testing.T) {
	ctx := context.Background()

	t.Run("it renders missing transclusion as an empty placeholder", func(t *testing.T) {
		content := "Some text.\n\n{{ KNOWL_INC('test.nonexisting') }}\n\nMore text."
		testee := render.New(loaderOf(domain.Knowl{Id: "test.text", Content: content}))

		got := try.To(testee.Render(ctx, "test.text", content)).OrFatal(t)

		for _, expected := range []string{
			"<p>Some text.</p>",
			`<div class="knowl-include knowl-missing" knowl="test.nonexisting"></div>`,
			"<p>More text.</p>",
		} {
			if !strings.Contains(got, expected) {
				t.Errorf("%q is not in:\n%s", expected, got)
			}
		}
		if strings.Contains(got, "<p><div") {
			t.Errorf("placeholder is wrapped in a paragraph:\n%s", got)
		}
	})

	t.Run("it transcludes existing knowls recursively", func(t *testing.T) {
		testee := render.New(loaderOf(
			domain.Knowl{Id: "a.outer", Content: "outer\n\n{{ KNOWL_INC('a.inner') }}"},
			domain.Knowl{Id: "a.inner", Content: "inner with $x_1$ and {{ KNOWL('a.leaf') }}"},
			domain.Knowl{Id: "a.leaf", Title: "Leaf"},
		))

		got := try.To(testee.Render(ctx, "a.outer", "outer\n\n{{ KNOWL_INC('a.inner') }}")).OrFatal(t)

		for _, expected := range []string{
			"<p>outer</p>",
			`<div class="knowl-include" knowl="a.inner"><p>inner with $x_1$ and `,
			`<a title="Leaf [a.leaf]" knowl="a.leaf" kwargs="">Leaf</a>`,
		} {
			if !strings.Contains(got, expected) {
				t.Errorf("%q is not in:\n%s", expected, got)
			}
		}
	})

	t.Run("inline transclusion breaks the paragraph", func(t *testing.T) {
		content := "See {{ KNOWL_INC('a.inner') }} here."
		testee := render.New(loaderOf(
			domain.Knowl{Id: "a.text", Content: content},
			domain.Knowl{Id: "a.inner", Content: "inner"},
		))

		got := try.To(testee.Render(ctx, "a.text", content)).OrFatal(t)

		expected := `<p>See </p><div class="knowl-include" knowl="a.inner"><p>inner</p></div><p> here.</p>`
		if !strings.Contains(got, expected) {
			t.Errorf("%q is not in:\n%s", expected, got)
		}
	})

	t.Run("transclusion in a list item is kept in the item", func(t *testing.T) {
		content := "- item {{ KNOWL_INC('a.inner') }}"
		testee := render.New(loaderOf(domain.Knowl{Id: "a.inner", Content: "inner"}))

		got := try.To(testee.Render(ctx, "a.text", content)).OrFatal(t)

		expected := `<li>item <div class="knowl-include" knowl="a.inner"><p>inner</p></div></li>`
		if !strings.Contains(got, expected) {
			t.Errorf("%q is not in:\n%s", expected, got)
		}
	})

	t.Run("it stops at cycles", func(t *testing.T) {
		testee := render.New(loaderOf(
			domain.Knowl{Id: "c.a", Content: "A {{ KNOWL_INC('c.b') }}"},
			domain.Knowl{Id: "c.b", Content: "B {{ KNOWL_INC('c.a') }}"},
		))

		got := try.To(testee.Render(ctx, "c.a", "A {{ KNOWL_INC('c.b') }}")).OrFatal(t)

		if !strings.Contains(got, `<div class="knowl-include" knowl="c.b">`) {
			t.Errorf("c.b is not included:\n%s", got)
		}
		if !strings.Contains(got, `<div class="knowl-include knowl-cycle" knowl="c.a"></div>`) {
			t.Errorf("cycle is not cut:\n%s", got)
		}
	})

	t.Run("it stops at max depth", func(t *testing.T) {
		testee := render.New(
			loaderOf(
				domain.Knowl{Id: "d.1", Content: "{{ KNOWL_INC('d.2') }}"},
				domain.Knowl{Id: "d.2", Content: "{{ KNOWL_INC('d.3') }}"},
				domain.Knowl{Id: "d.3", Content: "three"},
			),
			render.WithMaxDepth(1),
		)

		got := try.To(testee.Render(ctx, "d.1", "{{ KNOWL_INC('d.2') }}")).OrFatal(t)

		if !strings.Contains(got, `<div class="knowl-include" knowl="d.2">`) {
			t.Errorf("d.2 is not included:\n%s", got)
		}
		if !strings.Contains(got, `<div class="knowl-include knowl-cycle" knowl="d.3"></div>`) {
			t.Errorf("too deep transclusion is not cut:\n%s", got)
		}
		if strings.Contains(got, "three") {
			t.Errorf("d.3 is rendered:\n%s", got)
		}
	})

	t.Run("link title falls back to the id", func(t *testing.T) {
		testee := render.New(loaderOf())
		got := try.To(testee.Render(ctx, "x", "{{ KNOWL('x.missing') }}")).OrFatal(t)
		expected := `<a title="x.missing [x.missing]" knowl="x.missing" kwargs="">x.missing</a>`
		if !strings.Contains(got, expected) {
			t.Errorf("%q is not in:\n%s", expected, got)
		}
	})

	t.Run("explicit title and extra kwargs", func(t *testing.T) {
		testee := render.New(loaderOf())
		got := try.To(testee.Render(ctx, "x", `{{ KNOWL('ec.q.torsion', title='torsion', label='11a1') }}`)).OrFatal(t)
		expected := `<a title="torsion [ec.q.torsion]" knowl="ec.q.torsion" kwargs="label=11a1">torsion</a>`
		if !strings.Contains(got, expected) {
			t.Errorf("%q is not in:\n%s", expected, got)
		}
	})

	t.Run("malformed macros are left as text", func(t *testing.T) {
		testee := render.New(loaderOf())
		for _, content := range []string{
			"{{ KNOWL('bad id!') }}",
			"{{ NOT_A_MACRO('x') }}",
			"{{ KNOWL('x'",
		} {
			got, err := testee.Render(ctx, "x", content)
			if err != nil {
				t.Fatalf("%s: %v", content, err)
			}
			if strings.Contains(got, "knowl=") {
				t.Errorf("%s: expanded:\n%s", content, got)
			}
			if !strings.Contains(got, "{{") {
				t.Errorf("%s: text is lost:\n%s", content, got)
			}
		}
	})

	t.Run("hashtags become search links", func(t *testing.T) {
		testee := render.New(loaderOf(), render.WithSearchBase("/Knowledge/"))
		got := try.To(testee.Render(ctx, "x", "see #torsion here")).OrFatal(t)
		expected := `<a title="Knowl search for #torsion" notknowl="1" href="/Knowledge/?search=%23torsion">#torsion</a>`
		if !strings.Contains(got, expected) {
			t.Errorf("%q is not in:\n%s", expected, got)
		}
	})

	t.Run("it returns errors of loader", func(t *testing.T) {
		expected := errors.New("fake")
		testee := render.New(func(context.Context, string) (domain.Knowl, bool, error) {
			return domain.Knowl{}, false, expected
		})
		if _, err := testee.Render(ctx, "x", "{{ KNOWL_INC('y') }}"); !errors.Is(err, expected) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
