package domain

import "strings"

// DeliveryInfo is collected in the first checkout step.
type DeliveryInfo struct {
	Name                string `json:"name"`
	Email               string `json:"email,omitempty"`
	Street              string `json:"street"`
	City                string `json:"city"`
	State               string `json:"state"`
	ZipCode             string `json:"zipCode"`
	Phone               string `json:"phone"`
	SpecialInstructions string `json:"specialInstructions,omitempty"`
}

// Validate returns a field -> message map for every missing required field.
// An empty map means the info is complete.
func (d DeliveryInfo) Validate() map[string]string {
	fields := map[string]string{}
	required := []struct {
		name  string
		value string
	}{
		{"name", d.Name},
		{"street", d.Street},
		{"city", d.City},
		{"state", d.State},
		{"zipCode", d.ZipCode},
		{"phone", d.Phone},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			fields[r.name] = r.name + " is required"
		}
	}
	return fields
}

// Address is the part of DeliveryInfo that goes on the order.
func (d DeliveryInfo) Address() Address {
	return Address{
		Street:  d.Street,
		City:    d.City,
		State:   d.State,
		ZipCode: d.ZipCode,
	}
}

// Profile is the saved user profile used to pre-populate delivery info.
type Profile struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
}

// DeliveryInfoFromProfile pre-populates the fields a profile knows about.
func DeliveryInfoFromProfile(p *Profile) DeliveryInfo {
	if p == nil {
		return DeliveryInfo{}
	}
	return DeliveryInfo{
		Name:   p.FullName,
		Email:  p.Email,
		Street: p.Address,
		Phone:  p.Phone,
	}
}
