package adapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"gopkg.in/yaml.v2"

	log "go.uber.org/zap"
)

type payload struct {
	body []byte
}

// ToPayload wraps an already-read response body. The response itself
// is not retained: payload holds only the body bytes.
func ToPayload(body []byte, resp *http.Response, logger *log.Logger) Payload {
	logger.Debug("received body", log.Int("length", len(body)))
	return &payload{body: body}
}

func LoadPayloadFromStdin(isYAML bool) (Payload, error) {
	data, err := os.ReadFile("/dev/stdin")
	if err != nil {
		return nil, err
	}
	return LoadPayloadFromBytes(data, isYAML)
}

func LoadPayloadFromFile(fileName string, isYAML bool) (Payload, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	return LoadPayloadFromBytes(data, isYAML)
}

func LoadPayloadFromBytes(data []byte, isYAML bool) (pyld Payload, err error) {
	if isYAML {
		obj := make(map[interface{}]interface{})
		if err = yaml.Unmarshal(data, &obj); err != nil {
			return
		}
		if data, err = yamlToJSON(obj); err != nil {
			return
		}
	}
	pyld = &payload{body: data}
	return
}

func yamlToJSON(yamlData map[interface{}]interface{}) ([]byte, error) {
	cleaned := cleanYaml(yamlData)
	output, err := json.Marshal(cleaned)
	if err != nil {
		return nil, fmt.Errorf("error converting yaml to json: %w", err)
	}
	return output, nil
}

func cleanYaml(in map[interface{}]interface{}) map[string]interface{} {
	output := make(map[string]interface{})
	for key, value := range in {
		skey := key.(string) // expected to be 'string'
		output[skey] = value

		mval, isMap := value.(map[interface{}]interface{})
		sval, isSlice := value.([]interface{})

		if isMap {
			output[skey] = cleanYaml(mval)
		} else if isSlice {
			for i, item := range sval {
				if mitem, isInnerMap := item.(map[interface{}]interface{}); isInnerMap {
					sval[i] = cleanYaml(mitem)
				}
			}
		}
	}
	return output
}

func ReplyPrinter(pld Payload, useYAML bool) (err error) {
	var f interface{}
	if err = pld.AsType(&f); err != nil {
		return
	}
	var b []byte
	if useYAML {
		if b, err = yaml.Marshal(f); err != nil {
			return
		}
	} else {
		if b, err = json.MarshalIndent(f, "", "  "); err != nil {
			return
		}
	}
	fmt.Printf("%s\n", b)
	return
}

func (p *payload) AsType(r interface{}) error {
	return json.Unmarshal(p.body, r)
}

func (p *payload) AsObject() (map[string]interface{}, error) {
	var f interface{}
	if err := json.Unmarshal(p.body, &f); err != nil {
		return nil, err
	}
	if obj, ok := f.(map[string]interface{}); ok {
		return obj, nil
	}
	return nil, errors.New("not an object type")
}

func (p *payload) AsArray() ([]interface{}, error) {
	var f interface{}
	if err := json.Unmarshal(p.body, &f); err != nil {
		return nil, err
	}
	switch m := f.(type) {
	case []interface{}:
		return m, nil
	case map[string]interface{}:
		return []interface{}{m}, nil
	default:
		return nil, errors.New("not an array type")
	}
}

func (p *payload) AsBytes() []byte {
	return p.body
}

func (p *payload) IsEmpty() bool {
	return len(p.body) == 0
}
