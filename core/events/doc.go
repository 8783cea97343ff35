// Package events defines the run events emitted on the event bus.
//
// Available event types:
//   - UnitStarted: a (scenario, week, strategy) unit was handed to the solver
//   - UnitFinished: a unit ended, with or without an optimal solution
//   - SizingDone: the station count search of one class finished
package events
