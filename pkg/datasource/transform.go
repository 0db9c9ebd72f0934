package datasource

import (
	"fmt"

	"github.com/goliatone/go-formflow/pkg/descriptor"
	"github.com/goliatone/go-formflow/pkg/template"
)

// TransformItems shapes a raw upstream response into field items. When
// iteratorTpl is set it is evaluated against {"response": response} to
// re-root the payload; the result must be an array. itemsTpl then runs once
// per element with the element bound as "item" alongside the form context,
// yielding one {label, value} object per element (or an array to splice).
func TransformItems(ev template.Evaluator, itemsTpl, iteratorTpl string, response any, formContext map[string]any) ([]descriptor.FieldItem, error) {
	elements, err := iterate(ev, iteratorTpl, response, formContext)
	if err != nil {
		return nil, err
	}

	if itemsTpl == "" {
		return rawItems(elements)
	}

	items := make([]descriptor.FieldItem, 0, len(elements))
	for _, element := range elements {
		ctx := make(map[string]any, len(formContext)+1)
		for key, value := range formContext {
			ctx[key] = value
		}
		ctx["item"] = element

		result, err := ev.Evaluate(itemsTpl, ctx)
		if err != nil {
			return nil, fmt.Errorf("datasource: items template: %w", err)
		}
		switch shaped := result.(type) {
		case map[string]any:
			items = append(items, itemFromMap(shaped))
		case []any:
			for _, entry := range shaped {
				node, ok := entry.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("datasource: items template produced %T, want object", entry)
				}
				items = append(items, itemFromMap(node))
			}
		default:
			return nil, fmt.Errorf("datasource: items template produced %T, want object or array", result)
		}
	}
	return items, nil
}

func iterate(ev template.Evaluator, iteratorTpl string, response any, formContext map[string]any) ([]any, error) {
	root := response
	if iteratorTpl != "" {
		ctx := make(map[string]any, len(formContext)+1)
		for key, value := range formContext {
			ctx[key] = value
		}
		ctx["response"] = response
		rerooted, err := ev.Evaluate(iteratorTpl, ctx)
		if err != nil {
			return nil, fmt.Errorf("datasource: iterator template: %w", err)
		}
		root = rerooted
	}

	elements, ok := root.([]any)
	if !ok {
		return nil, fmt.Errorf("datasource: response is %T, want array", root)
	}
	return elements, nil
}

// rawItems handles responses already shaped as {label, value} objects.
func rawItems(elements []any) ([]descriptor.FieldItem, error) {
	items := make([]descriptor.FieldItem, 0, len(elements))
	for _, element := range elements {
		node, ok := element.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("datasource: response element is %T, want object", element)
		}
		items = append(items, itemFromMap(node))
	}
	return items, nil
}

func itemFromMap(node map[string]any) descriptor.FieldItem {
	item := descriptor.FieldItem{}
	if label, ok := node["label"]; ok {
		item.Label = fmt.Sprint(label)
	}
	if value, ok := node["value"]; ok {
		item.Value = fmt.Sprint(value)
	}
	return item
}
