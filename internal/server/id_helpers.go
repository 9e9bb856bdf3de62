package server

import (
	"errors"
	"strconv"
	"strings"
)

func formatUserID(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

func parseUserID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}

func parseItemID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("item id must be positive")
	}
	return id, nil
}
