// Package agent provides BaseAgent, the standard core.Agent implementation:
// identity, skills with proficiency levels, roles, permissions, a per-agent
// tool table with permission requirements, message handling and
// accountability metrics updated on every tool execution.
package agent
