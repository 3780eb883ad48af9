// Package models defines the core domain models for Syndicate.
//
// # Models
//
//   - Payment: a value stream from a creator to a receiver, vesting linearly over
//     a fixed window. Forking splits the unvested remainder into a child Payment.
//   - Delegation: an owner's grant of fork/settle authority to another participant.
//   - Event: an append-only journal entry describing one ledger effect.
//
// Participants are opaque 16-byte identifiers (uuid.UUID). There are no user
// names or accounts; whoever holds a token for a participant acts as it.
//
// # Conventions
//
// 1. Amounts are int64 counts of the single currency unit. There is no fractional unit.
// 2. Times are unix seconds (int64), matching the ledger clock resolution.
// 3. Payments refer to each other by index, never by pointer. The registry owns
//    every Payment; a child only records its parent's index.
package models
