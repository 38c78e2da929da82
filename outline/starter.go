package outline

import "github.com/zlnvch/flashlist/models"

// DefaultStarter is shown when nothing could be loaded at all.
func DefaultStarter(now int64) []models.Item {
	return []models.Item{
		{Id: "h1", Text: "Work", Level: 0, Type: models.ItemHeader, CreatedAt: now, Order: 0},
		{Id: "t1", Text: "Prepare the weekly report", Level: 1, Type: models.ItemTask, CreatedAt: now + 1, Order: 1},
		{Id: "t2", Text: "Tidy up the project docs", Level: 1, Type: models.ItemTask, CreatedAt: now + 2, Order: 2},
		{Id: "h2", Text: "Life", Level: 0, Type: models.ItemHeader, CreatedAt: now + 3, Order: 3},
		{Id: "t3", Text: "Buy fruit", Level: 1, Type: models.ItemTask, CreatedAt: now + 4, Order: 4},
		{Id: "t4", Text: "Book the dentist", Completed: true, Level: 1, Type: models.ItemTask, CreatedAt: now + 5, Order: 5},
	}
}
