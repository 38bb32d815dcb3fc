// Package core provides the foundational domain types, interfaces and execution
// contexts used by AgentFabric. It defines the core abstractions for:
//
//   - Agents (capability-bearing actors evaluated for roles and invoked by workflows)
//   - Messages (immutable inter-agent communication records)
//   - ToolContext (scoped execution context handed to tool implementations)
//   - ID generation shared by every entity in the system
//
// The package intentionally keeps implementation concerns (memory pools, the
// message bus, role negotiation, workflow orchestration) out of scope, exposing
// small interfaces to enable custom implementations and extensions.
package core
