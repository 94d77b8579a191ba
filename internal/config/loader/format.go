package loader

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format decodes one document syntax into a generic map.
type Format struct {
	Name      string
	unmarshal func([]byte, any) error
	position  func(error) (line, col int)
}

var (
	// TOML documents, decoded with go-toml.
	TOML = Format{Name: "toml", unmarshal: toml.Unmarshal, position: tomlPosition}
	// YAML documents, decoded with yaml.v3.
	YAML = Format{Name: "yaml", unmarshal: yaml.Unmarshal, position: yamlPosition}
)

var formatsByExt = map[string]Format{
	".toml": TOML,
	".yaml": YAML,
	".yml":  YAML,
}

func (f Format) parse(source string, data []byte) (map[string]any, error) {
	var out map[string]any
	if err := f.unmarshal(data, &out); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		perr.Line, perr.Column = f.position(err)
		return nil, perr
	}
	return out, nil
}

func tomlPosition(err error) (int, int) {
	var de *toml.DecodeError
	if errors.As(err, &de) {
		return de.Position()
	}
	return 0, 0
}

// yaml.v3 only reports positions inside its messages ("yaml: line 3: ...").
var yamlLine = regexp.MustCompile(`line (\d+)`)

func yamlPosition(err error) (int, int) {
	m := yamlLine.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, 0
	}
	n, _ := strconv.Atoi(m[1])
	return n, 0
}
