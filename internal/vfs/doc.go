/*
Package vfs provides the virtual file store the session engine writes into.

A Store is a blob store keyed by slash-separated absolute paths. Directories
are implicit. Every mutation is reported to subscribers as a batch of
FileChangeEvent values, in mutation order.

Implementations:
  - MemFS: in-memory store, used by the HTTP server and tests
  - DirFS: mirrors the virtual tree onto a local directory and reports edits
    made by other programs through fsnotify
*/
package vfs
