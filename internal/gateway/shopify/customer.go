package shopify

import (
	"context"
	"time"

	"storefront/internal/domain"
)

const (
	customerAccessTokenCreateMutation = `mutation customerAccessTokenCreate($input: CustomerAccessTokenCreateInput!) {
  customerAccessTokenCreate(input: $input) {
    customerAccessToken { accessToken expiresAt }
    customerUserErrors { field message code }
  }
}`

	customerAccessTokenDeleteMutation = `mutation customerAccessTokenDelete($customerAccessToken: String!) {
  customerAccessTokenDelete(customerAccessToken: $customerAccessToken) {
    deletedAccessToken
    userErrors { field message }
  }
}`

	customerCreateMutation = `mutation customerCreate($input: CustomerCreateInput!) {
  customerCreate(input: $input) {
    customer { id email }
    customerUserErrors { field message code }
  }
}`

	customerQuery = `query customer($customerAccessToken: String!, $orders: Int!) {
  customer(customerAccessToken: $customerAccessToken) {
    id
    email
    firstName
    lastName
    phone
    acceptsMarketing
    createdAt
    orders(first: $orders, sortKey: PROCESSED_AT, reverse: true) {
      edges {
        node {
          id
          name
          processedAt
          financialStatus
          fulfillmentStatus
          totalPrice { amount currencyCode }
          lineItems(first: 50) { edges { node { quantity } } }
        }
      }
    }
  }
}`
)

// CreateAccessToken exchanges customer credentials for an access token.
func (c *Client) CreateAccessToken(ctx context.Context, email, password string) (domain.AccessToken, error) {
	var data struct {
		Payload struct {
			Token *struct {
				AccessToken string    `json:"accessToken"`
				ExpiresAt   time.Time `json:"expiresAt"`
			} `json:"customerAccessToken"`
			UserErrors []UserError `json:"customerUserErrors"`
		} `json:"customerAccessTokenCreate"`
	}
	vars := map[string]interface{}{"input": map[string]interface{}{"email": email, "password": password}}
	if err := c.do(ctx, "customerAccessTokenCreate", customerAccessTokenCreateMutation, vars, &data); err != nil {
		return domain.AccessToken{}, err
	}
	for _, ue := range data.Payload.UserErrors {
		if ue.Code == "UNIDENTIFIED_CUSTOMER" {
			return domain.AccessToken{}, ErrInvalidCredentials
		}
	}
	if len(data.Payload.UserErrors) > 0 {
		return domain.AccessToken{}, &UserErrors{Op: "customerAccessTokenCreate", Errors: data.Payload.UserErrors}
	}
	if data.Payload.Token == nil {
		return domain.AccessToken{}, ErrInvalidCredentials
	}
	return domain.AccessToken{Token: data.Payload.Token.AccessToken, ExpiresAt: data.Payload.Token.ExpiresAt}, nil
}

// DeleteAccessToken revokes a customer access token.
func (c *Client) DeleteAccessToken(ctx context.Context, token string) error {
	var data struct {
		Payload struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"customerAccessTokenDelete"`
	}
	vars := map[string]interface{}{"customerAccessToken": token}
	if err := c.do(ctx, "customerAccessTokenDelete", customerAccessTokenDeleteMutation, vars, &data); err != nil {
		return err
	}
	if len(data.Payload.UserErrors) > 0 {
		return &UserErrors{Op: "customerAccessTokenDelete", Errors: data.Payload.UserErrors}
	}
	return nil
}

// CustomerInput holds registration fields.
type CustomerInput struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"firstName,omitempty"`
	LastName         string `json:"lastName,omitempty"`
	AcceptsMarketing bool   `json:"acceptsMarketing"`
}

// CreateCustomer registers a new customer account.
func (c *Client) CreateCustomer(ctx context.Context, in CustomerInput) (string, error) {
	var data struct {
		Payload struct {
			Customer *struct {
				ID string `json:"id"`
			} `json:"customer"`
			UserErrors []UserError `json:"customerUserErrors"`
		} `json:"customerCreate"`
	}
	if err := c.do(ctx, "customerCreate", customerCreateMutation, map[string]interface{}{"input": in}, &data); err != nil {
		return "", err
	}
	if len(data.Payload.UserErrors) > 0 {
		return "", &UserErrors{Op: "customerCreate", Errors: data.Payload.UserErrors}
	}
	if data.Payload.Customer == nil {
		return "", &UserErrors{Op: "customerCreate", Errors: []UserError{{Message: "customer not created"}}}
	}
	return data.Payload.Customer.ID, nil
}

// Customer loads the profile and recent orders for an access token.
func (c *Client) Customer(ctx context.Context, token string, orders int) (*domain.Customer, error) {
	var data struct {
		Customer *struct {
			ID               string    `json:"id"`
			Email            string    `json:"email"`
			FirstName        string    `json:"firstName"`
			LastName         string    `json:"lastName"`
			Phone            string    `json:"phone"`
			AcceptsMarketing bool      `json:"acceptsMarketing"`
			CreatedAt        time.Time `json:"createdAt"`
			Orders           struct {
				Edges []struct {
					Node struct {
						ID                string    `json:"id"`
						Name              string    `json:"name"`
						ProcessedAt       time.Time `json:"processedAt"`
						FinancialStatus   string    `json:"financialStatus"`
						FulfillmentStatus string    `json:"fulfillmentStatus"`
						TotalPrice        moneyV2   `json:"totalPrice"`
						LineItems         struct {
							Edges []struct {
								Node struct {
									Quantity int `json:"quantity"`
								} `json:"node"`
							} `json:"edges"`
						} `json:"lineItems"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"orders"`
		} `json:"customer"`
	}
	vars := map[string]interface{}{"customerAccessToken": token, "orders": orders}
	if err := c.do(ctx, "customer", customerQuery, vars, &data); err != nil {
		return nil, err
	}
	if data.Customer == nil {
		return nil, ErrUnauthorized
	}
	cust := &domain.Customer{
		ID:          data.Customer.ID,
		Email:       data.Customer.Email,
		FirstName:   data.Customer.FirstName,
		LastName:    data.Customer.LastName,
		Phone:       data.Customer.Phone,
		AcceptsMail: data.Customer.AcceptsMarketing,
		CreatedAt:   data.Customer.CreatedAt,
	}
	for _, e := range data.Customer.Orders.Edges {
		items := 0
		for _, li := range e.Node.LineItems.Edges {
			items += li.Node.Quantity
		}
		cust.Orders = append(cust.Orders, domain.Order{
			ID:                e.Node.ID,
			Name:              e.Node.Name,
			ProcessedAt:       e.Node.ProcessedAt,
			FinancialStatus:   e.Node.FinancialStatus,
			FulfillmentStatus: e.Node.FulfillmentStatus,
			Total:             e.Node.TotalPrice.toDomain(),
			ItemCount:         items,
		})
	}
	return cust, nil
}
