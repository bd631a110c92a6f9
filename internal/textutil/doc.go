// Package textutil provides filename and path-segment sanitization for
// content written into the library tree.
//
// SanitizeFileName keeps a human-readable name but strips characters that
// are unsafe across filesystems. SanitizeToken produces lowercase
// directory segments from tenant and project identifiers.
package textutil
