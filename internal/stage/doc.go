// Package stage defines the contract pipeline stages implement and the
// retrying executor that drives a single stage attempt loop under the
// error taxonomy and per-stage deadlines.
package stage
