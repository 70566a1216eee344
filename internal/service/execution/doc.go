// Package execution implements closed-loop action outcome tracking.
//
// An execution record is written when an action is taken (phase one) and
// updated exactly once when its outcome is measured after the observation
// window (phase two). The outcome, whether the lead advanced stage, is not
// knowable synchronously, hence the two-phase write.
//
// State machine per execution: pending_outcome -> measured (terminal).
// No other transitions exist. An execution that never reaches its window
// stays pending_outcome indefinitely and is excluded from optimizer
// training data.
//
// Repository implementations live in repository/postgres/.
package execution
