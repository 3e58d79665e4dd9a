package site

import "github.com/starford/cpbuild/internal/storage"

// copyStatic copies every file of src over dst, overwriting existing files.
// It returns the number of files copied.
func copyStatic(src, dst storage.Provider) (int, error) {
	if src == nil {
		return 0, nil
	}
	metas, err := src.List("", "")
	if err != nil {
		return 0, err
	}
	for i, m := range metas {
		data, err := src.Read(m.Path)
		if err != nil {
			return i, err
		}
		if err := dst.Write(m.Path, data); err != nil {
			return i, err
		}
	}
	return len(metas), nil
}
