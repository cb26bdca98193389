// Package retrieval resolves discovered references to local files.
//
// Every resolver is an ordered chain of independent strategies. A strategy
// reports Success, SoftFailure (try the next one) or HardFailure (stop). A
// non-empty file at the destination is the only proof of prior retrieval,
// and it is checked before any network activity.
package retrieval
