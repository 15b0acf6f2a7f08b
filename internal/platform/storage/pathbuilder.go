package storage

import (
	"fmt"
	"strings"
)

// DesignPathParams provide the identifiers composing a design object key.
type DesignPathParams struct {
	Prefix   string
	UserID   string
	FileID   string
	FileName string
}

// BuildDesignPath composes the object key for an uploaded design file:
// {prefix}/{userID}/{fileID}{ext}. The extension is taken from the
// original file name so downloads keep a usable suffix.
func BuildDesignPath(params DesignPathParams) (string, error) {
	prefix := strings.Trim(strings.TrimSpace(params.Prefix), "/")
	if prefix == "" {
		prefix = "designs"
	}
	userID, err := validateSegment("userID", params.UserID)
	if err != nil {
		return "", err
	}
	fileID, err := validateSegment("fileID", params.FileID)
	if err != nil {
		return "", err
	}
	ext := fileExtension(params.FileName)
	return fmt.Sprintf("%s/%s/%s%s", prefix, userID, fileID, ext), nil
}

func fileExtension(name string) string {
	name = strings.TrimSpace(name)
	idx := strings.LastIndex(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return ""
	}
	ext := strings.ToLower(name[idx:])
	if strings.ContainsAny(ext, "/\\") || strings.Contains(ext, "..") {
		return ""
	}
	return ext
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}
