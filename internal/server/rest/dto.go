package rest

import "github.com/dmitrijs2005/gophauth/internal/server/services"

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type usuario struct {
	Correo             string   `json:"correo" binding:"required,email"`
	Password           string   `json:"password" binding:"required,notblank,max=72"`
	Nombre             string   `json:"nombre"`
	Edad               *int     `json:"edad" binding:"omitempty,gte=0,lte=150"`
	PreferenciasPrecio *int     `json:"preferenciasPrecio"`
	Intereses          []string `json:"intereses" binding:"omitempty,unique,dive,uuid"`
	Avatar             string   `json:"avatar" binding:"omitempty,url"`
}

type registerRequest struct {
	Usuario *usuario `json:"Usuario" binding:"required"`
}

func (r registerRequest) profile() services.RegisterProfile {
	u := r.Usuario
	return services.RegisterProfile{
		Email:           u.Correo,
		Password:        u.Password,
		DisplayName:     u.Nombre,
		Age:             u.Edad,
		PricePreference: u.PreferenciasPrecio,
		InterestIDs:     u.Intereses,
		AvatarURL:       u.Avatar,
	}
}

type passwordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

type completePasswordResetRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,notblank,max=72"`
}

type userResponse struct {
	ID        string   `json:"id"`
	Nombre    string   `json:"nombre"`
	Intereses []string `json:"intereses"`
	Price     *int     `json:"price"`
}

type authResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    userResponse `json:"user"`
}

func newAuthResponse(res *services.AuthResult) authResponse {
	interests := res.InterestNames
	if interests == nil {
		interests = []string{}
	}
	return authResponse{
		Success: true,
		Token:   res.Token,
		User: userResponse{
			ID:        res.AccountID,
			Nombre:    res.DisplayName,
			Intereses: interests,
			Price:     res.PricePreference,
		},
	}
}

type msgResponse struct {
	Msg string `json:"msg"`
}
