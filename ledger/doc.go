// Package ledger owns Loan records and the open/close transitions between them.
package ledger
