package backend

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

type armError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ValidateActivation classifies responses to role activation, deactivation
// and removal schedule requests. The provider reports a 400 when the
// requested end state is already true (RoleAssignmentExists) or already in
// flight (RoleAssignmentRequestExists); both mean the request is done, not
// failed. Any other non-2xx status is fatal and carries the full body.
func ValidateActivation(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	if status == http.StatusBadRequest {
		var payload armError
		if err := json.Unmarshal(body, &payload); err == nil {
			switch payload.Error.Code {
			case "RoleAssignmentExists":
				slog.Info("role already assigned")
				return nil
			case "RoleAssignmentRequestExists":
				slog.Info("role assignment request already exists")
				return nil
			}
		}
	}

	return fmt.Errorf("request failed: status:%d body:%s", status, body)
}
