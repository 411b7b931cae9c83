package engine

import (
	"testing"
	"testing/fstest"
)

func benchEngine(b *testing.B) *ViewEngine {
	ve, err := NewViewEngineWithConfig(ViewConfig{FS: fstest.MapFS{
		"layout.html":    {Data: []byte(`<html><head><title>{{titulo}}</title></head><body>{{{content}}}</body></html>`)},
		"productos.html": {Data: []byte(`<h1>{{titulo}}</h1><ul>{{#each productos}}<li>{{#if oferta}}*{{/if}}{{nombre}} ${{precio}} ({{categoria}})</li>{{/each}}</ul>`)},
	}})
	if err != nil {
		b.Fatal(err)
	}
	return ve
}

func benchData() map[string]interface{} {
	productos := make([]map[string]interface{}, 50)
	for i := range productos {
		productos[i] = map[string]interface{}{
			"nombre":    "Producto",
			"precio":    float64(i) * 10.5,
			"categoria": "Accesorios",
			"oferta":    i%3 == 0,
		}
	}
	return map[string]interface{}{"titulo": "Productos", "productos": productos}
}

func BenchmarkRenderCached(b *testing.B) {
	ve := benchEngine(b)
	if err := ve.PreloadTemplates(); err != nil {
		b.Fatal(err)
	}
	data := benchData()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ve.RenderString("productos", data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRenderCold(b *testing.B) {
	ve := benchEngine(b)
	data := benchData()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ve.ClearCache()
		if _, err := ve.RenderString("productos", data); err != nil {
			b.Fatal(err)
		}
	}
}
