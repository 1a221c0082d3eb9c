package adminapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"

	"github.com/talkincode/botfleet/internal/domain"
	"github.com/talkincode/botfleet/internal/reminders"
	"github.com/talkincode/botfleet/internal/webserver"
)

func registerReminderRoutes() {
	webserver.ApiGET("/reminders", listReminders)
	webserver.ApiPOST("/reminders", postReminder)
	webserver.ApiDELETE("/reminders/:id", deleteReminder)
	webserver.ApiPOST("/reminders/:id/active", setReminderActive)
	webserver.ApiPOST("/reminders/import", postReminderImport)
	webserver.ApiGET("/reminders/export", exportReminders)
}

func listReminders(c echo.Context) error {
	jobs, err := deps.Reminders.List(c.QueryParam("tenantId"))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list reminders", err.Error())
	}
	return ok(c, jobs)
}

type reminderRequest struct {
	TenantID  string   `json:"tenantId"`
	Message   string   `json:"message"`
	Phones    []string `json:"phones"`
	Frequency string   `json:"frequency"`
	Hour      int      `json:"hour"`
	Minute    int      `json:"minute"`
}

func postReminder(c echo.Context) error {
	var req reminderRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}

	job := &domain.ReminderJob{
		TenantID:  req.TenantID,
		Message:   req.Message,
		Phones:    req.Phones,
		Frequency: req.Frequency,
		Hour:      req.Hour,
		Minute:    req.Minute,
	}
	err := deps.Reminders.Create(job)
	if errors.Is(err, reminders.ErrValidation) {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create reminder", err.Error())
	}
	return c.JSON(http.StatusCreated, job)
}

func deleteReminder(c echo.Context) error {
	id := cast.ToInt64(c.Param("id"))
	if id == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "id must be numeric", nil)
	}
	err := deps.Reminders.Delete(id)
	if errors.Is(err, reminders.ErrJobNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Reminder not found", nil)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DB_ERROR", "Failed to delete reminder", err.Error())
	}
	return okMessage(c, "reminder deleted")
}

type reminderActiveRequest struct {
	Active bool `json:"active"`
}

// setReminderActive pauses or resumes a job without deleting its definition.
func setReminderActive(c echo.Context) error {
	id := cast.ToInt64(c.Param("id"))
	if id == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "id must be numeric", nil)
	}
	var req reminderActiveRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	err := deps.Reminders.SetActive(id, req.Active)
	if errors.Is(err, reminders.ErrJobNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Reminder not found", nil)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update reminder", err.Error())
	}
	return okMessage(c, "reminder updated")
}

// postReminderImport ingests a newline-delimited phone list upload into an
// existing job. Malformed entries are dropped, duplicates collapsed.
func postReminderImport(c echo.Context) error {
	id := cast.ToInt64(c.FormValue("id"))
	if id == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "id must be numeric", nil)
	}
	file, err := c.FormFile("file")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "file upload is required", err.Error())
	}
	src, err := file.Open()
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "cannot open upload", err.Error())
	}
	defer src.Close()

	lines, err := reminders.ReadPhoneLines(src)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "cannot read upload", err.Error())
	}
	added, err := deps.Reminders.ImportPhones(id, lines)
	if errors.Is(err, reminders.ErrJobNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Reminder not found", nil)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DB_ERROR", "Failed to import recipients", err.Error())
	}
	return ok(c, map[string]int{"added": added})
}

func exportReminders(c echo.Context) error {
	jobs, err := deps.Reminders.List(c.QueryParam("tenantId"))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list reminders", err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="reminders.csv"`)
	c.Response().WriteHeader(http.StatusOK)
	return reminders.ExportJobsCSV(c.Response(), jobs)
}
