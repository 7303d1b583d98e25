package workflow

import (
	"fmt"
	"strings"

	"github.com/harun/promptchain/pkg/chain"
	"github.com/harun/promptchain/pkg/provider"
)

// Validate lints the definition without running it. It checks the rules the
// engine otherwise reports at run time: unique names, resolvable prompt,
// function and tool references, parseable conditions and compilable schemas.
func (d *Definition) Validate() ValidationResult {
	result := ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}

	if strings.TrimSpace(d.Name) == "" {
		result.addWarning("name", "Workflow has no name")
	}
	if len(d.Prompts) == 0 {
		result.addError("prompts", "Workflow must define at least one prompt")
	}

	d.validateProviders(&result)
	tools := d.validateTools(&result)
	d.validatePrompts(&result, tools)

	return result
}

// Err returns the validation errors as one error, or nil
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return fmt.Errorf("invalid workflow: %s", strings.Join(msgs, "; "))
}

func (r *ValidationResult) addError(field, format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) addWarning(field, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (d *Definition) validateProviders(result *ValidationResult) {
	seen := make(map[string]bool, len(d.Providers))
	for i, p := range d.Providers {
		field := fmt.Sprintf("providers[%d]", i)
		if strings.TrimSpace(p.Name) == "" {
			result.addError(field, "Provider name is required")
			continue
		}
		if seen[p.Name] {
			result.addError(field, "Duplicate provider name: %s", p.Name)
		}
		seen[p.Name] = true

		switch p.Type {
		case "", provider.TypeAnthropic, provider.TypeAnthropicVertex, provider.TypeOpenAI:
		default:
			result.addError(field, "Unsupported provider type: %s", p.Type)
		}
		if p.Model == "" {
			result.addError(field, "Provider %s has no model", p.Name)
		}
	}
}

// validateTools returns the set of callable tool names, including completeTask
func (d *Definition) validateTools(result *ValidationResult) map[string]bool {
	tools := map[string]bool{chain.CompleteTaskTool: true}
	seen := make(map[string]bool, len(d.Tools))

	for i, tool := range d.Tools {
		field := fmt.Sprintf("tools[%d]", i)
		if strings.TrimSpace(tool.Name) == "" {
			result.addError(field, "Tool name is required")
			continue
		}
		if seen[tool.Name] {
			result.addError(field, "Duplicate tool name: %s", tool.Name)
		}
		seen[tool.Name] = true
		tools[tool.Name] = true

		if tool.Parameters != nil {
			if t, ok := tool.Parameters["type"]; ok && t != "object" {
				result.addError(field+".parameters", "Tool %s parameters must be an object schema", tool.Name)
			} else if _, err := chain.CompileSchema(tool.Parameters); err != nil {
				result.addError(field+".parameters", "Tool %s has an invalid schema: %v", tool.Name, err)
			}
		}
		if len(tool.Command) == 0 {
			result.addWarning(field, "Tool %s has no command and must be bound to a handler", tool.Name)
		}
		if tool.TimeoutMs < 0 {
			result.addError(field+".timeoutMs", "Tool %s timeout cannot be negative", tool.Name)
		}
	}
	return tools
}

func (d *Definition) validatePrompts(result *ValidationResult, tools map[string]bool) {
	prompts := make(map[string]bool, len(d.Prompts))
	for i, p := range d.Prompts {
		if strings.TrimSpace(p.Name) == "" {
			result.addError(fmt.Sprintf("prompts[%d]", i), "Prompt name is required")
			continue
		}
		if prompts[p.Name] {
			result.addError(fmt.Sprintf("prompts[%d]", i), "Duplicate prompt name: %s", p.Name)
		}
		prompts[p.Name] = true
	}

	for _, p := range d.Prompts {
		field := "prompts." + p.Name

		if p.System == "" && p.User == "" {
			result.addWarning(field, "Prompt has neither a system nor a user template")
		}
		if _, err := chain.CompileSchema(p.ResponseFormat); err != nil {
			result.addError(field+".responseFormat", "Invalid response schema: %v", err)
		}
		for _, name := range p.Tools {
			if !tools[name] {
				result.addError(field+".tools", "Unknown tool: %s", name)
			}
		}

		for _, tr := range p.Then {
			tfield := fmt.Sprintf("%s.then[%q]", field, tr.Condition)
			if err := chain.CheckCondition(tr.Condition); err != nil {
				result.addError(tfield, "Invalid condition: %v", err)
			}

			action := tr.Action
			switch {
			case action.Prompt != "" && action.Function != "":
				result.addError(tfield, "Action must set either prompt or function, not both")
			case action.Prompt != "":
				if !prompts[action.Prompt] {
					result.addError(tfield, "Unknown prompt: %s", action.Prompt)
				}
			case action.Function != "":
				if !tools[action.Function] {
					result.addError(tfield, "Unknown function: %s", action.Function)
				}
			default:
				result.addError(tfield, "Action must set prompt or function")
			}
		}
	}
}
