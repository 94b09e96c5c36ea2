// Package docs registers the admin API document with swag so echo-swagger
// can serve it at /swagger/doc.json.
package docs

import (
	_ "embed"
	"log"

	"github.com/ghodss/yaml"
	"github.com/swaggo/swag"
)

//go:embed swagger.yaml
var specYAML []byte

type spec struct {
	json string
}

func (s *spec) ReadDoc() string {
	return s.json
}

func init() {
	doc, err := yaml.YAMLToJSON(specYAML)
	if err != nil {
		log.Printf("docs: convert swagger spec: %v", err)
		doc = []byte(`{"swagger":"2.0","info":{"title":"Agri Admin API","version":"1.0"},"paths":{}}`)
	}
	swag.Register(swag.Name, &spec{json: string(doc)})
}
