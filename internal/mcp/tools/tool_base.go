// Package tools implements the MCP tools exposed by the lite server.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ParseParams parses and validates generic parameters from interface{} to a target struct.
// Tools receive patient records as loose JSON objects and decode them here so
// that sparse records are accepted.
//
// Usage:
//
//	var record domain.PatientRecord
//	if err := ParseParams(params.Patient, &record); err != nil {
//	    return errorResult("Invalid patient record", err), nil, nil
//	}
func ParseParams(params interface{}, target interface{}) error {
	if params == nil {
		return fmt.Errorf("missing required parameters")
	}

	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}

	if err := json.Unmarshal(paramsBytes, target); err != nil {
		return fmt.Errorf("failed to parse parameters: %w", err)
	}

	return nil
}

// errorResult reports a tool-level failure without failing the protocol call.
func errorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}

// textResult pairs a one-line summary with the structured output.
func textResult(format string, args ...interface{}) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}
