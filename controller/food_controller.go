package controller

import (
	"errors"
	"net/http"
	"strings"

	"dashboard/backend"
	"dashboard/sheets"
	"dashboard/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type foodForm struct {
	FoodName           string  `form:"foodName" json:"foodName"`
	Price              float64 `form:"price" json:"price"`
	MenuID             string  `form:"menuId" json:"menuId"`
	Ingredients        string  `form:"ingredients" json:"ingredients"`
	Instructions       string  `form:"instructions" json:"instructions"`
	CookingTimeMinutes int     `form:"cookingTimeMinutes" json:"cookingTimeMinutes"`
	IsFeatured         bool    `form:"isFeatured" json:"isFeatured"`
	Status             string  `form:"status" json:"status"`
}

func (f foodForm) missing() []string {
	var fields []string
	if strings.TrimSpace(f.FoodName) == "" {
		fields = append(fields, "foodName")
	}
	if f.Price <= 0 {
		fields = append(fields, "price")
	}
	if strings.TrimSpace(f.MenuID) == "" {
		fields = append(fields, "menuId")
	}
	return fields
}

func (f foodForm) input(image *backend.Upload) backend.FoodInput {
	return backend.FoodInput{
		FoodName:           strings.TrimSpace(f.FoodName),
		Price:              f.Price,
		MenuID:             strings.TrimSpace(f.MenuID),
		Ingredients:        f.Ingredients,
		Instructions:       f.Instructions,
		CookingTimeMinutes: f.CookingTimeMinutes,
		IsFeatured:         f.IsFeatured,
		Status:             f.Status,
		Image:              image,
	}
}

func (h *Handler) FoodsByMenu(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	foods, err := sess.Store.LoadFoods(c.Request.Context(), c.Param("id"), forceParam(c), sess.API.FoodsByMenu)
	if err != nil {
		utils.RespondError(c, err, "Failed to load foods")
		return
	}
	respondOK(c, "", foods)
}

func (h *Handler) GetFood(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	food, err := sess.API.Food(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err, "Food not found")
		return
	}
	respondOK(c, "", food)
}

func (h *Handler) CreateFood(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var form foodForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid food data"})
		return
	}
	if missing := form.missing(); len(missing) > 0 {
		utils.RespondError(c, &utils.ValidationError{Fields: missing}, "Invalid food data")
		return
	}
	image, err := imageUpload(c, "imageCover")
	if err != nil {
		badUpload(c, err)
		return
	}

	in := form.input(image)
	food, err := sess.API.CreateFood(c.Request.Context(), in)
	if err != nil {
		utils.RespondError(c, err, "Failed to add food")
		return
	}
	sess.Store.AddFood(in.MenuID, *food)
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Food added successfully", "data": food})
}

func (h *Handler) UpdateFood(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var form foodForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid food data"})
		return
	}
	image, err := imageUpload(c, "imageCover")
	if err != nil {
		badUpload(c, err)
		return
	}

	in := form.input(image)
	food, err := sess.API.UpdateFood(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		utils.RespondError(c, err, "Failed to update food")
		return
	}
	if food.ID == "" {
		food.ID = c.Param("id")
	}
	if in.MenuID != "" {
		sess.Store.UpdateFood(in.MenuID, *food)
	}
	respondOK(c, "Food updated successfully", food)
}

func (h *Handler) DeleteFood(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := sess.API.DeleteFood(c.Request.Context(), id); err != nil {
		utils.RespondError(c, err, "Failed to delete food")
		return
	}
	if menuID := c.Query("menuId"); menuID != "" {
		sess.Store.DeleteFood(menuID, id)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Food deleted successfully"})
}

// ImportFoods creates one food per valid row of the uploaded workbook.
// Rows the sheet rejects and rows the backend refuses are both reported.
func (h *Handler) ImportFoods(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Excel file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Unable to open Excel file"})
		return
	}
	defer file.Close()

	rows, skipped, err := sheets.ParseFoodSheet(file)
	switch {
	case errors.Is(err, sheets.ErrNoRows):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Excel must have at least one row of data"})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Failed to parse Excel file"})
		return
	case len(rows) == 0:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No valid rows found", "skipped": skipped})
		return
	}

	created := 0
	var lastErr error
	for _, row := range rows {
		food, err := sess.API.CreateFood(c.Request.Context(), backend.FoodInput{
			FoodName:           row.Name,
			Price:              row.Price,
			MenuID:             row.MenuID,
			Instructions:       row.Description,
			CookingTimeMinutes: row.CookingTime,
		})
		if err != nil {
			lastErr = err
			skipped = append(skipped, sheets.SkippedRow{Row: row.Row, Reason: backend.MessageOf(err)})
			continue
		}
		sess.Store.AddFood(row.MenuID, *food)
		created++
	}

	if created == 0 {
		utils.RespondError(c, lastErr, "Bulk food upload failed")
		return
	}
	h.log.Info("foods imported", zap.String("session_id", sess.ID), zap.Int("created", created), zap.Int("skipped", len(skipped)))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Bulk food upload successful",
		"count":   created,
		"skipped": skipped,
	})
}

// LandingFoods is the public catalogue; it needs no session.
func (h *Handler) LandingFoods(c *gin.Context) {
	foods, err := h.client.Public().AllFoods(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err, "Failed to load foods")
		return
	}
	respondOK(c, "", foods)
}
