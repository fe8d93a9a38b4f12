package composition

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/viper"

	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
	"github.com/deploymenttheory/go-rom-uf2/internal/config"
	"github.com/deploymenttheory/go-rom-uf2/internal/logger"
)

// Workflow is a named, ordered list of image operations
type Workflow struct {
	// Name of the workflow (required)
	Name string `mapstructure:"name"`

	// Optional description of the workflow
	Description string `mapstructure:"description"`

	// Version of the workflow definition
	Version string `mapstructure:"version"`

	// Ordered list of steps to execute
	Steps []Step `mapstructure:"steps"`

	// Variables that can be referenced in step parameters
	Variables map[string]interface{} `mapstructure:"variables"`
}

// Step represents a single step in the workflow
type Step struct {
	// Unique name for the step (required)
	Name string `mapstructure:"name"`

	// Type of operation to perform (required)
	Type string `mapstructure:"type"`

	// Optional human-readable description of the step
	Description string `mapstructure:"description"`

	// Optional template that must render to true for the step to run
	Condition string `mapstructure:"condition"`

	// All remaining keys are step parameters
	Parameters map[string]interface{} `mapstructure:",remain"`
}

// LoadWorkflow loads a workflow from a file
func LoadWorkflow(filePath string) (*Workflow, error) {
	v := viper.New()

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: workflow %s", commonerrors.ErrFileNotFound, filePath)
	}

	v.SetConfigFile(filePath)
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext != "" {
		v.SetConfigType(ext[1:])
	} else {
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading workflow file: %w", err)
	}

	workflow := &Workflow{}
	if err := v.Unmarshal(workflow); err != nil {
		return nil, fmt.Errorf("error parsing workflow: %w", err)
	}
	if workflow.Variables == nil {
		workflow.Variables = make(map[string]interface{})
	}
	addSystemVariables(workflow, filepath.Dir(filePath))

	return workflow, nil
}

// addSystemVariables adds environment and config values to the workflow's variables
func addSystemVariables(workflow *Workflow, workflowDir string) {
	workflow.Variables["workflow_dir"] = workflowDir
	workflow.Variables["output_dir"] = config.Instance.Build.OutputDir

	if cwd, err := os.Getwd(); err == nil {
		workflow.Variables["current_dir"] = cwd
	}

	workflow.Variables["timestamp"] = fmt.Sprintf("%d", time.Now().Unix())
}

// renderParameters expands templates in a step's string parameters using
// the variables as they stand when the step starts.
func renderParameters(step Step, variables map[string]interface{}) (map[string]interface{}, error) {
	rendered := make(map[string]interface{}, len(step.Parameters))
	for key, value := range step.Parameters {
		strValue, ok := value.(string)
		if !ok {
			rendered[key] = value
			continue
		}
		processed, err := processTemplate(strValue, variables)
		if err != nil {
			return nil, fmt.Errorf("error processing template in step %s, parameter %s: %w", step.Name, key, err)
		}
		rendered[key] = processed
	}
	return rendered, nil
}

// processTemplate processes a single template string
func processTemplate(templateString string, variables map[string]interface{}) (string, error) {
	if !strings.Contains(templateString, "{{") {
		return templateString, nil
	}

	tmpl, err := template.New("inline").Option("missingkey=error").Parse(templateString)
	if err != nil {
		return "", err
	}

	var buffer bytes.Buffer
	if err := tmpl.Execute(&buffer, variables); err != nil {
		return "", err
	}
	return buffer.String(), nil
}

// ValidateWorkflow validates the workflow structure and parameters
func ValidateWorkflow(workflow *Workflow) []error {
	var errs []error

	if workflow.Name == "" {
		errs = append(errs, fmt.Errorf("workflow name is required"))
	}
	if len(workflow.Steps) == 0 {
		errs = append(errs, fmt.Errorf("workflow must contain at least one step"))
	}

	registry := createStepHandlerRegistry()
	seen := make(map[string]bool)
	for i, step := range workflow.Steps {
		if step.Name == "" {
			errs = append(errs, fmt.Errorf("step %d: name is required", i+1))
		} else if seen[step.Name] {
			errs = append(errs, fmt.Errorf("step %d: duplicate name %q", i+1, step.Name))
		}
		seen[step.Name] = true

		entry, ok := registry[step.Type]
		if !ok {
			errs = append(errs, fmt.Errorf("step %d (%s): invalid type '%s'", i+1, step.Name, step.Type))
			continue
		}
		for _, param := range entry.required {
			if _, ok := step.Parameters[param]; !ok {
				errs = append(errs, fmt.Errorf("step %d (%s): missing required parameter '%s'", i+1, step.Name, param))
			}
		}
	}

	return errs
}

// ExecuteWorkflow validates and runs the workflow steps in order. Each
// step's outputs are added to the variables both as-is and prefixed with
// the step name, so later steps can reference them.
func ExecuteWorkflow(ctx context.Context, workflow *Workflow) error {
	if errs := ValidateWorkflow(workflow); len(errs) > 0 {
		for _, err := range errs {
			logger.LogError("invalid workflow", err, nil)
		}
		return fmt.Errorf("%w: workflow %q has %d validation errors, first: %v",
			commonerrors.ErrConfigInvalid, workflow.Name, len(errs), errs[0])
	}

	logger.LogInfo("Starting workflow execution", map[string]interface{}{
		"workflow": workflow.Name,
		"steps":    len(workflow.Steps),
	})

	registry := createStepHandlerRegistry()

	for i, step := range workflow.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		logger.LogInfo(fmt.Sprintf("Executing step %d/%d: %s", i+1, len(workflow.Steps), step.Name),
			map[string]interface{}{
				"type":        step.Type,
				"description": step.Description,
			})

		if step.Condition != "" {
			shouldRun, err := evaluateCondition(step.Condition, workflow.Variables)
			if err != nil {
				return fmt.Errorf("error evaluating condition for step '%s': %w", step.Name, err)
			}
			if !shouldRun {
				logger.LogInfo(fmt.Sprintf("Skipping step %d/%d: %s (condition not met)", i+1, len(workflow.Steps), step.Name), nil)
				continue
			}
		}

		params, err := renderParameters(step, workflow.Variables)
		if err != nil {
			return err
		}
		step.Parameters = params

		result, err := registry[step.Type].handler(ctx, step)
		if err != nil {
			logger.LogError(fmt.Sprintf("Step %d/%d failed: %s", i+1, len(workflow.Steps), step.Name), err, nil)
			return fmt.Errorf("%w: '%s': %w", commonerrors.ErrStepFailed, step.Name, err)
		}

		prefix := variablePrefix(step.Name)
		for k, v := range result {
			workflow.Variables[k] = v
			workflow.Variables[prefix+k] = v
		}

		logger.LogInfo(fmt.Sprintf("Completed step %d/%d: %s", i+1, len(workflow.Steps), step.Name), nil)
	}

	logger.LogInfo("Workflow execution completed successfully", map[string]interface{}{
		"workflow": workflow.Name,
	})
	return nil
}

// variablePrefix turns a step name into a template-safe key prefix
func variablePrefix(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	b.WriteByte('_')
	return b.String()
}
