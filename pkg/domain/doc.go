/*
Package domain contains the protocol-sequencing model of the fuzzing engine.

It defines what a run executes (StateModel, State, Action) and what a run
reports (Fault, ActionRecord, lifecycle events). Data models themselves live
in package model; actions refer to them by declarative definition so one
StateModel can be compiled once and cloned for every iteration.

# Key Entities

  - StateModel: named states with one designated initial state.
  - State: an ordered list of actions.
  - Action: a typed endpoint operation bound to zero or more data models.
  - SlurpBinding: copies a value from one element to others across actions.
  - Fault: a classified failure with element path and byte offset.
*/
package domain
