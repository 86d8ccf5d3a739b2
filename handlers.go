package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"time"

	"cardscan/models"
	"cardscan/pkg/ocr"
	"cardscan/pkg/recognize"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func setupRoutes(r *gin.Engine) {
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	r.POST("/refresh", refreshHandler)
	r.POST("/revoke_refresh", revokeRefreshHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.POST("/collection", createCollectionHandler)
	authGroup.GET("/collection", getCollectionHandler)
	authGroup.POST("/entries", createEntryHandler)
	authGroup.GET("/entries", listEntriesHandler)
	authGroup.GET("/entries/summary", entriesSummaryHandler)
	authGroup.POST("/scans", scanUploadHandler)
	authGroup.GET("/scans", listScansHandler)
	authGroup.GET("/scans/:id", getScanHandler)
	authGroup.POST("/identify/name", identifyNameHandler)
	authGroup.GET("/cards/printings", listPrintingsHandler)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)
		c.Set("username", username)
		if role != "" {
			c.Set("role", role)
		}
		c.Next()
	}
}

func meHandler(c *gin.Context) {
	usernameVal, _ := c.Get("username")
	if usernameVal == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing username"})
		return
	}
	username := usernameVal.(string)
	c.JSON(http.StatusOK, gin.H{"username": username})
}

// getUserFromContext fetches the currently authenticated user using the username set by jwtAuthMiddleware
func getUserFromContext(c *gin.Context) (*models.User, bool) {
	unameVal, _ := c.Get("username")
	if unameVal == nil {
		return nil, false
	}
	uname := unameVal.(string)
	var user models.User
	if err := db.Where("username = ?", uname).First(&user).Error; err != nil {
		return nil, false
	}
	return &user, true
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := registerUser(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := authenticateUser(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	// Generate JWT token. Resolve role name from RoleID (we only store role_id now).
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// create refresh token
	refreshToken, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

// createAndStoreRefreshToken generates a random refresh token, stores its hash with expiry and returns the raw token string
func createAndStoreRefreshToken(userID uint) (string, error) {
	// generate random 32-byte token (hex)
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	// hash for storage
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	rt := models.RefreshToken{UserID: userID, TokenHash: th, ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

// helper to find refresh token record by raw token string
func findRefreshTokenByRaw(token string) (*models.RefreshToken, error) {
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	var rt models.RefreshToken
	if err := db.Where("token_hash = ?", th).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || !rt.Usable(time.Now()) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	// load user
	var user models.User
	if err := db.First(&user, rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	// create access token
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(15 * time.Minute).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// rotate refresh token: revoke existing and create new one
	db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout)
func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	rt.Revoked = true
	if err := db.Save(rt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}

func createCollectionHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	col := models.Collection{UserID: user.ID, Name: req.Name}
	if err := db.Create(&col).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create collection"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": col.ID})
}

func getCollectionHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var col models.Collection
	if err := db.Where("user_id = ?", user.ID).First(&col).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "collection not found"})
		return
	}
	c.JSON(http.StatusOK, col)
}

// createEntryHandler adds a card entry by hand (no scan involved).
func createEntryHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var col models.Collection
	if err := db.Where("user_id = ?", user.ID).First(&col).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "collection missing"})
		return
	}
	var req struct {
		CardName        string `json:"card_name" binding:"required"`
		OracleID        string `json:"oracle_id"`
		PrintingID      string `json:"printing_id"`
		SetCode         string `json:"set_code"`
		CollectorNumber string `json:"collector_number"`
		Quantity        int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	entry, err := upsertEntry(col.ID, models.CollectionEntry{
		CardName:        req.CardName,
		OracleID:        req.OracleID,
		PrintingID:      req.PrintingID,
		SetCode:         req.SetCode,
		CollectorNumber: req.CollectorNumber,
		Quantity:        req.Quantity,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": entry.ID, "quantity": entry.Quantity})
}

// upsertEntry bumps the quantity when the printing is already held,
// otherwise inserts a new entry.
func upsertEntry(collectionID uint, e models.CollectionEntry) (*models.CollectionEntry, error) {
	var existing models.CollectionEntry
	err := db.Where("collection_id = ? AND printing_id = ?", collectionID, e.PrintingID).First(&existing).Error
	if err == nil {
		existing.Quantity += e.Quantity
		if err := db.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	e.CollectionID = collectionID
	if err := db.Create(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// listEntriesHandler lists entries for the authenticated user (admin sees all)
func listEntriesHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var col models.Collection
	db.Where("user_id = ?", user.ID).First(&col)
	var items []models.CollectionEntry
	q := db.Model(&models.CollectionEntry{})
	if role != models.RoleAdmin {
		q = q.Where("collection_id = ?", col.ID)
	}
	if err := q.Order("id desc").Limit(200).Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, items)
}

// entriesSummaryHandler returns card counts grouped by set code.
func entriesSummaryHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var col models.Collection
	db.Where("user_id = ?", user.ID).First(&col)
	type Result struct {
		SetCode string `json:"set_code"`
		Cards   int64  `json:"cards"`
		Copies  int64  `json:"copies"`
	}
	var results []Result
	q := db.Model(&models.CollectionEntry{})
	if role != models.RoleAdmin {
		q = q.Where("collection_id = ?", col.ID)
	}
	rows, err := q.Select("set_code, count(*) as cards, sum(quantity) as copies").Group("set_code").Rows()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	defer rows.Close()
	for rows.Next() {
		var r Result
		rows.Scan(&r.SetCode, &r.Cards, &r.Copies)
		results = append(results, r)
	}
	c.JSON(http.StatusOK, results)
}

// scanUploadHandler handles multipart card photo upload, runs OCR and
// identification, records the scan and links a collection entry on success.
func scanUploadHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	// ensure collection exists
	var col models.Collection
	if err := db.Where("user_id = ?", user.ID).First(&col).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "collection missing"})
		return
	}
	folder := c.PostForm("folder")
	if folder == "" {
		folder = "default"
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > 10*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 10MB)"})
		return
	}
	ct := file.Header.Get("Content-Type")
	baseDir := uploadBaseDir()
	relPath := folder + "/" + file.Filename
	fullPath := baseDir + "/" + relPath
	if err := os.MkdirAll(baseDir+"/"+folder, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mkdir failed"})
		return
	}
	if err := c.SaveUploadedFile(file, fullPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	scan := models.Scan{
		CollectionID: col.ID,
		FileName:     file.Filename,
		StorePath:    "public/" + relPath,
		ContentType:  ct,
	}
	identifyScan(c.Request.Context(), &scan, fullPath)
	if err := db.Create(&scan).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
		return
	}
	// link or create the collection entry for a matched scan
	if scan.Matched {
		entry, err := upsertEntry(col.ID, models.CollectionEntry{
			CardName:        scan.CardName,
			OracleID:        scan.OracleID,
			PrintingID:      scan.PrintingID,
			SetCode:         scan.SetCode,
			CollectorNumber: scan.CollectorNumber,
			Quantity:        1,
		})
		if err == nil {
			scan.EntryID = &entry.ID
			db.Save(&scan)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         scan.ID,
		"path":       relPath,
		"matched":    scan.Matched,
		"method":     scan.Method,
		"card_name":  scan.CardName,
		"set_code":   scan.SetCode,
		"confidence": scan.Confidence,
		"entry_id":   scan.EntryID,
		"failed":     scan.Failed,
		"reason":     scan.FailedReason,
	})
}

// identifyScan runs OCR and the identification pipeline for a stored photo
// and fills the scan record in place. Failures mark the scan instead of
// erroring so the record is kept for review and re-scan.
func identifyScan(ctx context.Context, scan *models.Scan, fullPath string) {
	text, err := ocr.ExtractCardText(fullPath)
	if err != nil {
		scan.Failed = true
		scan.FailedReason = "ocr: " + err.Error()
		return
	}
	img, err := imaging.Open(fullPath)
	if err != nil {
		img = nil // identification still works from text alone
	}
	res, err := pipe.Identify(ctx, text.Text, img)
	if err != nil {
		if errors.Is(err, recognize.ErrEmptyInput) {
			scan.Failed = true
			scan.FailedReason = "no usable text"
			return
		}
		scan.Failed = true
		scan.FailedReason = err.Error()
		return
	}
	scan.Method = string(res.Method)
	scan.Confidence = res.Confidence
	if !res.Matched {
		return
	}
	scan.Matched = true
	scan.CardName = res.Card.Name
	scan.OracleID = res.Card.OracleID
	if res.Printing != nil {
		scan.PrintingID = res.Printing.ID
		scan.SetCode = res.Printing.SetCode
		scan.CollectorNumber = res.Printing.CollectorNumber
	}
}

// listScansHandler returns scans; admin sees all, user only own collection's scans.
func listScansHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var col models.Collection
	db.Where("user_id = ?", user.ID).First(&col)
	var scans []models.Scan
	q := db.Model(&models.Scan{})
	if role != models.RoleAdmin {
		q = q.Where("collection_id = ?", col.ID)
	}
	if err := q.Order("id desc").Limit(100).Find(&scans).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, scans)
}

// getScanHandler returns single scan if admin or owner.
func getScanHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var col models.Collection
	db.Where("user_id = ?", user.ID).First(&col)
	id := c.Param("id")
	var scan models.Scan
	if err := db.First(&scan, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if role != models.RoleAdmin && scan.CollectionID != col.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, scan)
}

// identifyNameHandler resolves a card from a typed-in name, no photo needed.
func identifyNameHandler(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res := pipe.IdentifyName(c.Request.Context(), req.Name, nil)
	c.JSON(http.StatusOK, res)
}

// listPrintingsHandler lists all printings of a card by name.
func listPrintingsHandler(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name query param required"})
		return
	}
	res := pipe.IdentifyName(c.Request.Context(), name, nil)
	if !res.Matched {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":      res.Card.Name,
		"oracle_id": res.Card.OracleID,
		"printings": res.Card.Printings,
	})
}
