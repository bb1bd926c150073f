package health

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func inspectStaticDir(dir string, maxFiles int) *StaticInfo {
	videos := filepath.Join(dir, "videos")
	info := &StaticInfo{Path: videos}

	entries, err := os.ReadDir(videos)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return info
		}
		info.ReadError = err.Error()
		return info
	}
	info.Exists = true

	type file struct {
		name string
		mod  int64
	}
	var files []file
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".mp4") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		info.Videos++
		info.TotalBytes += fi.Size()
		files = append(files, file{name: e.Name(), mod: fi.ModTime().UnixNano()})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].mod == files[j].mod {
			return files[i].name < files[j].name
		}
		return files[i].mod > files[j].mod
	})
	for i := 0; i < len(files) && i < maxFiles; i++ {
		info.Recent = append(info.Recent, files[i].name)
	}
	return info
}
