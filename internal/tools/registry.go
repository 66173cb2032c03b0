package tools

import (
	"github.com/agentstart/agentstart-sub001/internal/agent"
)

// Registry builds the default Tool Registry (§4.3): read, write,
// update, ls, glob, grep, bash, todoRead, todoWrite.
func Registry(identity GitIdentity) map[string]agent.Tool {
	all := []agent.Tool{
		NewReadTool(),
		NewWriteTool(identity),
		NewUpdateTool(identity),
		NewLsTool(),
		NewGlobTool(),
		NewGrepTool(),
		NewBashTool(identity),
		NewTodoReadTool(),
		NewTodoWriteTool(),
	}
	reg := make(map[string]agent.Tool, len(all))
	for _, tool := range all {
		reg[tool.Name()] = tool
	}
	return reg
}
