// Package tool implements the tool execution subsystem that lets agents invoke
// structured capabilities (computations, memory access, messaging, side‑effects)
// with schema validated arguments, consistent error handling and composition of
// multiple tools into small data-flow pipelines.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/internal/util"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tools can be registered with agents to enable structured invocation, allowing
// agents to perform actions beyond coordination such as calculations, memory
// queries, messaging, or any other programmatic operations.
//
// All tools receive a ToolContext carrying the acting agent's identity, the
// workflow binding (if any), a call ID for correlation and a staged context
// delta that the orchestrator merges into the instance context after a
// successful step.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
//   - Follow consistent naming conventions
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should be descriptive and follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation.
	Parameters() map[string]interface{}

	// Call executes the tool with structured arguments and ToolContext.
	// Arguments are validated against the tool's schema before execution.
	Call(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
//
// Codes in use across the framework:
//
//	VALIDATION_ERROR  -> schema / argument mismatch
//	EXECUTION_ERROR   -> underlying function returned an error
//	PERMISSION_ERROR  -> acting agent lacks a required permission
//	NOT_FOUND         -> the named tool is not registered
type ToolError struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
