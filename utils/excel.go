package utils

import (
	"github.com/xuri/excelize/v2"

	"github.com/expo25/eventpass/models"
)

// ExportSheetName is the worksheet holding the user/feedback join.
const ExportSheetName = "Users"

// NoFeedbackPlaceholder fills the Feedback column for users without an entry.
const NoFeedbackPlaceholder = "N/A"

// BuildUserExport joins users with their feedback in memory and lays the
// result out as {Name, Mobile, Feedback} rows. Only the first feedback entry
// per user is used; users without one get the placeholder. The join works on
// whatever snapshot the caller passes in, it does not re-query anything.
func BuildUserExport(users []models.User, feedbacks []models.Feedback) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(ExportSheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	byUser := make(map[uint]string, len(feedbacks))
	for _, fb := range feedbacks {
		if _, ok := byUser[fb.UserID]; !ok { // first match only
			byUser[fb.UserID] = fb.Feedback
		}
	}

	if err := f.SetSheetRow(ExportSheetName, "A1", &[]interface{}{"Name", "Mobile", "Feedback"}); err != nil {
		return nil, err
	}
	for i, u := range users {
		feedback, ok := byUser[u.ID]
		if !ok {
			feedback = NoFeedbackPlaceholder
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(ExportSheetName, cell, &[]interface{}{u.Name, u.Mobile, feedback}); err != nil {
			return nil, err
		}
	}

	return f, nil
}
