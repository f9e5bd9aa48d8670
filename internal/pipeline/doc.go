// Package pipeline converts pending recordings in the input tree.
//
// Each recording is decoded, relocated into processing/<batch>/<stem>/original,
// encoded whole into converted/, and sliced into fixed windows under chunks/.
// Every file written is recorded as an artifact in the ledger. Recordings that
// cannot be decoded are moved to failed/<batch>/<stem>/ and marked failed.
package pipeline
