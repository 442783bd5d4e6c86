package filetypes

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/GlintPay/gccs-vault/utils"
	yamlv3 "gopkg.in/yaml.v3"
	"sigs.k8s.io/yaml"
)

// documentKey holds the value of a document that is not a map
const documentKey = "document"

type YamlContext struct {
	Decrypter Decrypter
}

// ToProperties parses a JSON or YAML document into flat properties: nested maps become dotted
// names and list entries become name[index]. Multiple YAML documents are merged in order, later
// documents overriding earlier ones.
func ToProperties(data []byte, yc YamlContext) (map[string]string, error) {
	if yc.Decrypter != nil {
		decrypted, err := yc.Decrypter.Decrypt(data)
		if err != nil {
			return nil, err
		}
		data = decrypted
	}

	documents, err := splitDocuments(data)
	if err != nil {
		return nil, err
	}

	properties := map[string]string{}
	for _, doc := range documents {
		var structured any
		if e := yaml.Unmarshal(doc, &structured, useNumber); e != nil {
			return nil, e
		}
		if structured == nil {
			continue
		}

		asMap, ok := structured.(map[string]any)
		if !ok {
			asMap = map[string]any{documentKey: structured}
		}

		for k, v := range utils.FlattenToProperties(asMap) {
			properties[k] = v
		}
	}
	return properties, nil
}

func splitDocuments(data []byte) ([][]byte, error) {
	var documents [][]byte

	decoder := yamlv3.NewDecoder(bytes.NewReader(data))
	for {
		var node yamlv3.Node
		if err := decoder.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				return documents, nil
			}
			return nil, err
		}
		if node.Kind == 0 || (node.Kind == yamlv3.DocumentNode && len(node.Content) == 0) {
			continue
		}

		doc, err := yamlv3.Marshal(&node)
		if err != nil {
			return nil, err
		}
		documents = append(documents, doc)
	}
}

// keep numbers as written, rather than float64 round trips
func useNumber(d *json.Decoder) *json.Decoder {
	d.UseNumber()
	return d
}
