package filters

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/sambeau/sage/pkg/sage/evaluator"
)

// registerSerializers adds /json and /yaml. Both are block filters: they
// write the serialized value to the page and return nil. With a second
// argument the text is bound to that name instead of being written.
func registerSerializers(r *Registry) {
	r.RegisterBlock("json", func(_ context.Context, bc *evaluator.BlockContext, args []any) (any, error) {
		if err := wantArgs("json", args, 1, 2); err != nil {
			return nil, err
		}
		data, err := json.Marshal(args[0])
		if err != nil {
			return nil, fmt.Errorf("/json: %w", err)
		}
		return emit(bc, args, string(data)+"\n")
	})

	r.RegisterBlock("yaml", func(_ context.Context, bc *evaluator.BlockContext, args []any) (any, error) {
		if err := wantArgs("yaml", args, 1, 2); err != nil {
			return nil, err
		}
		data, err := yaml.Marshal(args[0])
		if err != nil {
			return nil, fmt.Errorf("/yaml: %w", err)
		}
		return emit(bc, args, string(data))
	})
}

func emit(bc *evaluator.BlockContext, args []any, s string) (any, error) {
	if len(args) == 2 {
		name, ok := args[1].(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("second argument must name a variable, got %s", describe(args[1]))
		}
		bc.Bind(name, s)
		return nil, nil
	}
	bc.Write(s)
	return nil, nil
}
