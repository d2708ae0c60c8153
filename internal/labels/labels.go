// Package labels holds the fixed class table of the character classifier.
package labels

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned when a class id has no entry in the table.
var ErrIndexOutOfRange = errors.New("class id out of range")

// table is indexed by the model's class id. Order matters: it must match the
// output layout the model was trained with.
var table = [...]string{
	"高坂桐乃",
	"高坂京介",
	"黒猫",
	"新垣あやせ",
	"田村麻奈実",
	"来栖加奈子",
	"沙織・バジーナ",
}

// Len is the number of classes the model predicts.
const Len = len(table)

// Resolve maps a class id to its display label.
func Resolve(classID int) (string, error) {
	if classID < 0 || classID >= Len {
		return "", fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, classID, Len)
	}
	return table[classID], nil
}

// All returns a copy of the table in class id order.
func All() []string {
	out := make([]string, Len)
	copy(out, table[:])
	return out
}
