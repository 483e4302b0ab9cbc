package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"bikes-api/middleware"
	"bikes-api/models"
	"bikes-api/repositories"
	"bikes-api/services"
	"bikes-api/utils"
)

var bikeAttributes = []string{"brand", "model", "model_year", "user_id"}

type BikeController struct {
	bikes *repositories.BikeRepository
}

func NewBikeController(bikes *repositories.BikeRepository) *BikeController {
	return &BikeController{bikes: bikes}
}

// BikeResponse is the JSON representation of a bike.
type BikeResponse struct {
	models.Bike
	URL string `json:"url"`
}

func NewBikeResponse(bike models.Bike) BikeResponse {
	return BikeResponse{Bike: bike, URL: bike.Path() + ".json"}
}

// BikeForm is what the bike form shows, kept as entered so a rejected value
// can be corrected.
type BikeForm struct {
	Brand     string
	Model     string
	ModelYear string
	UserID    string
}

func bikeForm(bike *models.Bike, params map[string]string) BikeForm {
	form := BikeForm{Brand: bike.Brand, Model: bike.Model}
	if bike.ModelYear != 0 {
		form.ModelYear = strconv.Itoa(bike.ModelYear)
	}
	if bike.UserID != 0 {
		form.UserID = strconv.FormatUint(uint64(bike.UserID), 10)
	}
	if v, ok := params["model_year"]; ok {
		form.ModelYear = v
	}
	if v, ok := params["user_id"]; ok {
		form.UserID = v
	}
	return form
}

func (bc *BikeController) Index(c *gin.Context) {
	bikes, err := bc.bikes.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	if middleware.WantsJSON(c) {
		resp := make([]BikeResponse, 0, len(bikes))
		for _, b := range bikes {
			resp = append(resp, NewBikeResponse(b))
		}
		c.JSON(http.StatusOK, resp)
		return
	}
	render(c, http.StatusOK, "bikes/index", "Bikes", gin.H{"Bikes": bikes})
}

func (bc *BikeController) Show(c *gin.Context) {
	bike, ok := bc.load(c)
	if !ok {
		return
	}

	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, NewBikeResponse(*bike))
		return
	}
	render(c, http.StatusOK, "bikes/show", "Bike", gin.H{"Bike": bike})
}

func (bc *BikeController) New(c *gin.Context) {
	if middleware.WantsJSON(c) {
		notAcceptable(c)
		return
	}
	bc.renderForm(c, http.StatusOK, &models.Bike{}, nil, nil)
}

func (bc *BikeController) Edit(c *gin.Context) {
	if middleware.WantsJSON(c) {
		notAcceptable(c)
		return
	}
	bike, ok := bc.load(c)
	if !ok {
		return
	}
	bc.renderForm(c, http.StatusOK, bike, nil, nil)
}

func (bc *BikeController) Create(c *gin.Context) {
	params, err := bikeParams(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	bike := &models.Bike{}
	if verrs := applyBikeParams(bike, params); len(verrs) > 0 {
		bc.rejected(c, bike, params, verrs)
		return
	}
	if user := middleware.CurrentUser(c); user != nil && bike.UserID == 0 && !middleware.WantsJSON(c) {
		bike.UserID = user.ID
	}

	if err := bc.bikes.Create(c.Request.Context(), bike); err != nil {
		fail(c, err)
		return
	}
	middleware.Logger(c).WithField("bike_id", bike.ID).Info("bike created")

	if middleware.WantsJSON(c) {
		c.Header("Location", bike.Path())
		c.JSON(http.StatusCreated, NewBikeResponse(*bike))
		return
	}
	utils.SetFlash(c, "Bike was successfully created.", "")
	c.Redirect(http.StatusFound, bike.Path())
}

func (bc *BikeController) Update(c *gin.Context) {
	bike, ok := bc.load(c)
	if !ok {
		return
	}

	params, err := bikeParams(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if verrs := applyBikeParams(bike, params); len(verrs) > 0 {
		bc.rejected(c, bike, params, verrs)
		return
	}

	if err := bc.bikes.Update(c.Request.Context(), bike); err != nil {
		fail(c, err)
		return
	}

	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, NewBikeResponse(*bike))
		return
	}
	utils.SetFlash(c, "Bike was successfully updated.", "")
	c.Redirect(http.StatusFound, bike.Path())
}

func (bc *BikeController) Destroy(c *gin.Context) {
	bike, ok := bc.load(c)
	if !ok {
		return
	}

	err := bc.bikes.Delete(c.Request.Context(), bike.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		notFound(c)
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	middleware.Logger(c).WithField("bike_id", bike.ID).Info("bike destroyed")

	if middleware.WantsJSON(c) {
		c.Status(http.StatusNoContent)
		return
	}
	utils.SetFlash(c, "Bike was successfully destroyed.", "")
	c.Redirect(http.StatusFound, "/bikes")
}

// load fetches the bike named by :id, answering 404 itself when there is none.
func (bc *BikeController) load(c *gin.Context) (*models.Bike, bool) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		notFound(c)
		return nil, false
	}

	bike, err := bc.bikes.Get(c.Request.Context(), id)
	if errors.Is(err, repositories.ErrNotFound) {
		notFound(c)
		return nil, false
	}
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return bike, true
}

func (bc *BikeController) rejected(c *gin.Context, bike *models.Bike, params map[string]string, verrs services.ValidationErrors) {
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verrs})
		return
	}
	bc.renderForm(c, http.StatusUnprocessableEntity, bike, params, verrs.FullMessages())
}

func (bc *BikeController) renderForm(c *gin.Context, status int, bike *models.Bike, params map[string]string, errs []string) {
	data := gin.H{
		"Form":   bikeForm(bike, params),
		"Errors": errs,
	}
	if bike.ID == 0 {
		data["Action"] = "/bikes"
		data["Submit"] = "Create Bike"
		render(c, status, "bikes/new", "New Bike", data)
		return
	}
	data["Action"] = bike.Path()
	data["Method"] = "patch"
	data["Submit"] = "Update Bike"
	render(c, status, "bikes/edit", "Editing Bike", data)
}

// bikeParams returns the permitted bike attributes present in the request,
// read from bike[...] form fields or from a JSON body that is either the bare
// object or wrapped as {"bike": {...}}.
func bikeParams(c *gin.Context) (map[string]string, error) {
	params := map[string]string{}

	if c.ContentType() != gin.MIMEJSON {
		for _, attr := range bikeAttributes {
			if v, ok := c.GetPostForm("bike[" + attr + "]"); ok {
				params[attr] = v
			}
		}
		return params, nil
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
		if err == io.EOF {
			return params, nil
		}
		return nil, errors.Wrap(err, "malformed JSON body")
	}
	if raw, ok := body["bike"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err == nil && inner != nil {
			body = inner
		}
	}

	for _, attr := range bikeAttributes {
		if raw, ok := body[attr]; ok {
			params[attr] = jsonScalar(raw)
		}
	}
	return params, nil
}

// jsonScalar flattens a JSON value to the text a form field would carry.
func jsonScalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func applyBikeParams(bike *models.Bike, params map[string]string) services.ValidationErrors {
	verrs := services.ValidationErrors{}

	if v, ok := params["brand"]; ok {
		bike.Brand = v
	}
	if v, ok := params["model"]; ok {
		bike.Model = v
	}
	if v, ok := params["model_year"]; ok {
		if n, err := utils.ParseOptionalInt(v); err != nil {
			verrs.Add("model_year", "is not a number")
		} else {
			bike.ModelYear = n
		}
	}
	if v, ok := params["user_id"]; ok {
		n, err := utils.ParseOptionalInt(v)
		switch {
		case err != nil:
			verrs.Add("user_id", "is not a number")
		case n < 0:
			verrs.Add("user_id", "must be greater than or equal to 0")
		default:
			bike.UserID = uint(n)
		}
	}
	return verrs
}
