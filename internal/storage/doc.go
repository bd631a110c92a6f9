// Package storage delivers finished videos to the library. The layout is
// deterministic so callers can predict a recording's address from its tenant
// and project alone. The only implementation writes to the local filesystem;
// the Uploader interface keeps the driver independent of where finals land.
package storage
