package types

import (
	"github.com/mahirjain10/object-pipeline/internal/utils"
)

const PlaceholderItem = "test"

// CustomObject is the payload carried through every stage.
type CustomObject struct {
	Item      string `json:"item"`
	IsUpdated bool   `json:"isUpdated"`
	IsChecked bool   `json:"isChecked"`
}

func NewCustomObject() *CustomObject {
	return &CustomObject{Item: PlaceholderItem}
}

func ParseCustomObject(data []byte) (*CustomObject, error) {
	var object CustomObject
	if err := utils.ParseJSON(data, &object); err != nil {
		return nil, err
	}
	return &object, nil
}

func (o *CustomObject) Bytes() ([]byte, error) {
	return utils.SerializeJSON(o)
}

// ObjectLocation is the queue message body Update sends to Check.
type ObjectLocation struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func ParseObjectLocation(data []byte) (*ObjectLocation, error) {
	var location ObjectLocation
	if err := utils.ParseJSON(data, &location); err != nil {
		return nil, err
	}
	return &location, nil
}
