// Package executor runs GraphQL queries breadth first against a Runtime.
//
// Synchronous fields are expanded as soon as their parent completes.
// Fields marked Async are queued instead, and every queued field of one
// response depth is handed to Runtime.BatchResolveAsync in a single call.
// The values of a batch are completed in place, which may queue the next
// depth. Execution ends when a depth queues nothing.
//
// The response is built where it will be returned: each field owns a
// position in its parent object or list. A Non-Null violation clears the
// nearest nullable position above it, and queued fields below a cleared
// position are dropped before their batch is issued.
package executor
