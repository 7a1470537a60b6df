// Package report exports the record store to spreadsheet workbooks for
// archive review.
package report
