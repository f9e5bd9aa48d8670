// Package fetcher pulls the current day's recordings from the remote host
// into the local input tree and registers each new one in the ledger.
//
// Deduplication is by file name: a name already recorded today is not
// downloaded again, and a name recorded on an earlier day is downloaded
// but discarded because the ledger keeps the first occurrence.
package fetcher
