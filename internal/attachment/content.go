// Package attachment resolves Bitbucket Server markdown attachment
// references to archive storage locations and exports the referenced
// files.
package attachment

import (
	"crypto/md5"
	"encoding/hex"
	"path"
	"strings"
)

// Filename returns the name an attachment is stored under inside the
// archive: the MD5 of the raw reference followed by its lowercased
// extension. It depends only on the raw link, never on the resolved path,
// so repeated references to the same link share one stored file.
func Filename(rawLink string) string {
	sum := md5.Sum([]byte(rawLink))
	return hex.EncodeToString(sum[:]) + Extension(rawLink)
}

// Extension returns the lowercased extension of the last path element of
// rawLink, including the leading dot, or "" when there is none. Dotfiles
// such as ".env" have no extension.
func Extension(rawLink string) string {
	base := rawLink[strings.LastIndex(rawLink, "/")+1:]
	ext := path.Ext(base)
	if ext == base || ext == "." {
		return ""
	}
	return strings.ToLower(ext)
}
