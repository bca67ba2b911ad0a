package vfs

import "strings"

// resolveDir walks an absolute path of directory components (no trailing
// leaf) starting at the root and returns the inode of the final directory.
func (fs *FileSystem) resolveDir(parts []string) (*Inode, error) {
	ip, err := fs.readInode(RootInum)
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		if p == "" {
			continue
		}
		e, _, err := fs.dirLookup(ip, p)
		if err != nil {
			return nil, err
		}
		if e.Type != TypeDir {
			return nil, ErrWrongType
		}
		ip, err = fs.readInode(e.Inum)
		if err != nil {
			return nil, err
		}
	}
	return ip, nil
}

// splitPath parses path per the supported grammar: an absolute path
// ("/a/b/c"), a single relative component ("name"), or "..". Any other
// relative form (embedded "." segments, multi-component relative paths) is
// rejected as ErrUnsupportedPath, matching the reference client's
// restriction to these forms.
func splitPath(path string) (absolute bool, parts []string, err error) {
	if path == "" {
		return false, nil, ErrUnsupportedPath
	}
	if strings.HasPrefix(path, "/") {
		raw := strings.Split(path, "/")
		var clean []string
		for _, p := range raw {
			if p == "" {
				continue
			}
			if p == "." {
				return false, nil, ErrUnsupportedPath
			}
			clean = append(clean, p)
		}
		return true, clean, nil
	}
	if strings.Contains(path, "/") {
		return false, nil, ErrUnsupportedPath
	}
	if path == "." {
		return false, nil, ErrUnsupportedPath
	}
	return false, []string{path}, nil
}

// resolve finds the directory inode and final-component name that path
// refers to, relative to cwd for non-absolute forms. It does not require
// the final component to exist; callers that need it to exist look it up
// themselves via dirLookup on the returned directory.
func (fs *FileSystem) resolve(cwd uint32, path string) (dir *Inode, leaf string, err error) {
	absolute, parts, err := splitPath(path)
	if err != nil {
		return nil, "", err
	}

	if absolute {
		if len(parts) == 0 {
			ip, err := fs.readInode(RootInum)
			return ip, "", err
		}
		dir, err := fs.resolveDir(parts[:len(parts)-1])
		if err != nil {
			return nil, "", err
		}
		return dir, parts[len(parts)-1], nil
	}

	if parts[0] == ".." {
		cur, err := fs.readInode(cwd)
		if err != nil {
			return nil, "", err
		}
		e, _, err := fs.dirLookup(cur, "..")
		if err != nil {
			return nil, "", err
		}
		parent, err := fs.readInode(e.Inum)
		if err != nil {
			return nil, "", err
		}
		// ".." is already fully resolved to its target directory here; an
		// empty leaf tells callers the returned directory is the answer,
		// not a parent to look something up within.
		return parent, "", nil
	}

	cur, err := fs.readInode(cwd)
	if err != nil {
		return nil, "", err
	}
	return cur, parts[0], nil
}
