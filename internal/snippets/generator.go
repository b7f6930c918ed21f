// Package snippets renders copy-paste integration code for the browser
// client served at /ab.js.
package snippets

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/stecom/seopulse/internal/store"
)

type Framework string

const (
	FrameworkHTML   Framework = "html"
	FrameworkNextJS Framework = "nextjs"
	FrameworkReact  Framework = "react"
	FrameworkVue    Framework = "vue"
)

// Frameworks lists the supported frameworks in prompt order.
var Frameworks = []Framework{FrameworkHTML, FrameworkNextJS, FrameworkReact, FrameworkVue}

type Config struct {
	Test      *store.ABTest
	ServerURL string
	// Winner, when set, switches output to static markup for that variant.
	Winner *store.Variant
}

type SnippetFile struct {
	Filename string
	Content  string
}

type templateData struct {
	TestID    string
	TestName  string
	ServerURL string
	Selector  string
	Fallback  string
	Winner    *store.Variant
}

func Generate(framework Framework, cfg Config) ([]SnippetFile, error) {
	if cfg.Test == nil {
		return nil, fmt.Errorf("test is required")
	}
	data := buildTemplateData(cfg)

	if cfg.Winner != nil {
		return generateStaticWinner(data)
	}

	switch framework {
	case FrameworkHTML:
		return render("ab-test.html", htmlTemplate, data)
	case FrameworkNextJS:
		return render("app/layout.tsx", nextTemplate, data)
	case FrameworkReact:
		return render("ABTest.tsx", reactTemplate, data)
	case FrameworkVue:
		return render("ABTest.vue", vueTemplate, data)
	default:
		return nil, fmt.Errorf("unknown framework %q", framework)
	}
}

func buildTemplateData(cfg Config) templateData {
	d := templateData{
		TestID:    cfg.Test.ID,
		TestName:  cfg.Test.Name,
		ServerURL: strings.TrimRight(cfg.ServerURL, "/"),
		Selector:  "h1",
		Winner:    cfg.Winner,
	}
	if len(cfg.Test.Variants) > 0 {
		first := cfg.Test.Variants[0]
		d.Fallback = first.Name
		for _, c := range first.Changes {
			if c.Selector != "" {
				d.Selector = c.Selector
				if c.OriginalValue != "" {
					d.Fallback = c.OriginalValue
				}
				break
			}
		}
	}
	return d
}

func render(filename, content string, data templateData) ([]SnippetFile, error) {
	tmpl, err := template.New(filename).Parse(content)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return []SnippetFile{{Filename: filename, Content: buf.String()}}, nil
}

// generateStaticWinner writes the winning variant's changes as plain markup
// so the test script can be removed.
func generateStaticWinner(data templateData) ([]SnippetFile, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "<!-- Static winner of %q: %s (%s) -->\n", data.TestName, data.Winner.Name, data.Winner.ID)
	for _, c := range data.Winner.Changes {
		switch c.Type {
		case store.ChangeTitle:
			fmt.Fprintf(&b, "<title>%s</title>\n", template.HTMLEscapeString(c.Value))
		case store.ChangeDescription:
			fmt.Fprintf(&b, "<meta name=\"description\" content=\"%s\">\n", template.HTMLEscapeString(c.Value))
		case store.ChangeLayout:
			fmt.Fprintf(&b, "<!-- %s: class=\"%s\" -->\n", c.Selector, template.HTMLEscapeString(c.Value))
		case store.ChangeContent:
			fmt.Fprintf(&b, "<!-- %s -->\n%s\n", c.Selector, c.Value)
		default:
			fmt.Fprintf(&b, "<!-- %s -->\n%s\n", c.Selector, template.HTMLEscapeString(c.Value))
		}
	}
	if len(data.Winner.Changes) == 0 {
		b.WriteString("<!-- the winning variant makes no changes; keep the original markup -->\n")
	}
	return []SnippetFile{{Filename: "static-winner.html", Content: b.String()}}, nil
}

const htmlTemplate = `<!-- seopulse A/B test: {{.TestName}} -->
<script src="{{.ServerURL}}/ab.js" defer></script>

<!-- Mark the element the test changes ({{.Selector}}) -->
<h1 data-ab-test="{{.TestID}}">{{.Fallback}}</h1>

<!-- Count clicks and conversions -->
<a href="/pricing" data-ab-click="{{.TestID}}">See pricing</a>
<button data-ab-convert="{{.TestID}}">Get Started</button>
`

const nextTemplate = `import Script from 'next/script';

export default function RootLayout({ children }: { children: React.ReactNode }) {
  return (
    <html lang="en">
      <body>
        {children}
        <Script src="{{.ServerURL}}/ab.js" strategy="afterInteractive" />
      </body>
    </html>
  );
}

// In your page:
//   <h1 data-ab-test="{{.TestID}}">{{.Fallback}}</h1>
//   <button data-ab-convert="{{.TestID}}">Get Started</button>
`

const reactTemplate = `import { useEffect, useState } from 'react';

const API = '{{.ServerURL}}/api/seo/abtests/{{.TestID}}';

function userId(): string {
  let id = localStorage.getItem('seopulse_uid');
  if (!id) {
    id = crypto.randomUUID();
    localStorage.setItem('seopulse_uid', id);
  }
  return id;
}

function send(variant: string, event: string) {
  navigator.sendBeacon(API + '/events',
    new Blob([JSON.stringify({ variant, event })], { type: 'application/json' }));
}

export function ABTestHeadline() {
  const [variant, setVariant] = useState<{ id: string; name: string } | null>(null);

  useEffect(() => {
    fetch(API + '/assign?user=' + encodeURIComponent(userId()))
      .then((r) => (r.ok ? r.json() : null))
      .then((body) => {
        const v = body?.data?.variant;
        if (!v) return;
        setVariant(v);
        send(v.id, 'impression');
      })
      .catch(() => {});
  }, []);

  return (
    <>
      <h1>{variant?.name ?? '{{.Fallback}}'}</h1>
      <button onClick={() => variant && send(variant.id, 'conversion')}>Get Started</button>
    </>
  );
}
`

const vueTemplate = `<script setup lang="ts">
import { onMounted, ref } from 'vue';

const API = '{{.ServerURL}}/api/seo/abtests/{{.TestID}}';
const variant = ref<{ id: string; name: string } | null>(null);

function userId(): string {
  let id = localStorage.getItem('seopulse_uid');
  if (!id) {
    id = crypto.randomUUID();
    localStorage.setItem('seopulse_uid', id);
  }
  return id;
}

function send(event: string) {
  if (!variant.value) return;
  navigator.sendBeacon(API + '/events',
    new Blob([JSON.stringify({ variant: variant.value.id, event })], { type: 'application/json' }));
}

onMounted(async () => {
  const r = await fetch(API + '/assign?user=' + encodeURIComponent(userId()));
  if (!r.ok) return;
  const body = await r.json();
  variant.value = body?.data?.variant ?? null;
  send('impression');
});
</script>

<template>
  <h1>{{"{{"}} variant?.name ?? '{{.Fallback}}' {{"}}"}}</h1>
  <button @click="send('conversion')">Get Started</button>
</template>
`
