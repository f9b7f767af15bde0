package resolver

import (
	"encoding/json"
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/flowrun-ai/codeexec/engine/core"
)

var indexAccessRe = regexp.MustCompile(`\[(\d+)\]`)

// blockLookup resolves dotted paths against recorded block outputs, falling
// back to the block's declared output schema when no runtime data exists.
// Each block's output is serialized once and queried with gjson.
type blockLookup struct {
	outputs map[string]core.Output
	schemas map[string]core.Output
	raw     map[string]string
}

func newBlockLookup(req *Request) *blockLookup {
	return &blockLookup{
		outputs: req.BlockOutputs,
		schemas: req.BlockSchemas,
		raw:     make(map[string]string),
	}
}

func (l *blockLookup) resolve(blockID, path string) (any, bool) {
	if v, ok := l.query(l.outputs, "o:", blockID, path); ok {
		return v, true
	}
	if v, ok := l.query(l.schemas, "s:", blockID, path); ok {
		return v, true
	}
	return nil, false
}

func (l *blockLookup) query(source map[string]core.Output, cachePrefix, blockID, path string) (any, bool) {
	output, ok := source[blockID]
	if !ok {
		return nil, false
	}
	raw, ok := l.raw[cachePrefix+blockID]
	if !ok {
		data, err := json.Marshal(output)
		if err != nil {
			return nil, false
		}
		raw = string(data)
		l.raw[cachePrefix+blockID] = raw
	}
	result := gjson.Get(raw, toGJSONPath(path))
	if !result.Exists() {
		return nil, false
	}
	value := result.Value()
	// Values that were stored as serialized JSON come back as structure.
	if s, ok := value.(string); ok {
		return core.ParseJSONString(s), true
	}
	return value, true
}

// toGJSONPath rewrites bracketed index access (items[0].name) into gjson's
// dotted form (items.0.name).
func toGJSONPath(path string) string {
	return indexAccessRe.ReplaceAllString(path, ".$1")
}
