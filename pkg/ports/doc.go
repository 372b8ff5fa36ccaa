/*
Package ports defines the driven ports (interfaces) of the fuzzing engine.

These interfaces decouple the action state machine from the systems it talks
to and the places it keeps results, so the same StateModel can drive a TCP
peer, an in-process fake or a recorded trace.

# Key Interfaces

  - Endpoint: the target. Every endpoint-facing action maps to one method.
  - Mutator: alters model values before an iteration runs.
  - FaultReporter: receives classified faults.
  - SlurpCache: keeps the values copied during the recording iteration.
  - DistributedLocker: serializes runs against the same target across processes.
*/
package ports
