package content

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// contentFieldNames are the fields Craft reads from the value craft returns.
var contentFieldNames = []string{"subject", "body"}

// contentFields extracts subject and body from a dict or struct returned by
// craft. Other fields are ignored; None reads as an empty string.
func contentFields(v starlark.Value) (map[string]string, error) {
	var lookup func(name string) (starlark.Value, bool, error)

	switch val := v.(type) {
	case *starlark.Dict:
		lookup = func(name string) (starlark.Value, bool, error) {
			return val.Get(starlark.String(name))
		}
	case *starlarkstruct.Struct:
		lookup = func(name string) (starlark.Value, bool, error) {
			attr, err := val.Attr(name)
			if err != nil || attr == nil {
				return nil, false, nil
			}
			return attr, true, nil
		}
	default:
		return nil, fmt.Errorf("craft must return a dict or struct, got %s", v.Type())
	}

	fields := make(map[string]string, len(contentFieldNames))
	for _, name := range contentFieldNames {
		value, found, err := lookup(name)
		if err != nil {
			return nil, err
		}
		if !found || value == starlark.None {
			continue
		}
		s, ok := starlark.AsString(value)
		if !ok {
			return nil, fmt.Errorf("%s must be a string, got %s", name, value.Type())
		}
		fields[name] = s
	}
	return fields, nil
}
