// Package stages implements the seven pipeline stages. Each stage wraps one
// external collaborator behind the shared stage contract, folds its result
// into the processing record, and reports through the run's progress
// tracker. Stages never call each other; ordering belongs to the pipeline.
package stages
