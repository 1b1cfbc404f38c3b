package bplustree

import (
	"encoding/binary"
	"fmt"

	"relkernel/internal/page"
)

/*
SerializeNode/DeserializeNode lay a Node out in a 4KB page exactly the way
the pre-crabbing prototype of this tree did: page ids are stored as LOCAL
ids (low 32 bits) so the layout is unaffected by how global ids get
reassigned across restarts, and DeserializeNode reconstructs global ids
using the file id the caller already knows (every page it touches belongs
to this tree's own file).

Layout:

	Header (35 bytes, byte 8 reserved for the page-type stamp WritePage writes):
	  localPageID  int64  (bytes 0-7)
	  reserved            (byte 8)
	  isLeaf       bool   (byte 9)
	  numKeys      int16  (bytes 10-11)
	  localParent  int64  (bytes 12-19) — -1 if none
	  localNext    int64  (bytes 20-27) — leaf-only, -1 if none
	  reserved            (bytes 28-34)

	Body:
	  numKeys × [ keyLen uint16 | key []byte ]
	  internal: (numKeys+1) × [ localChildID int64 ]
	  leaf:      numKeys    × [ valLen uint16 | val []byte ]
*/

func SerializeNode(node *Node, data []byte) error {
	if len(data) != page.PageSize {
		return fmt.Errorf("serializeNode: data buffer must be %d bytes", page.PageSize)
	}

	offset := 0

	localPageID := node.pageID & 0xFFFFFFFF
	binary.LittleEndian.PutUint64(data[offset:], uint64(localPageID))
	offset += 8

	offset += 1 // byte 8: page-type stamp, written separately by WritePage

	if node.isLeaf() {
		data[offset] = 1
	} else {
		data[offset] = 0
	}
	offset += 1

	binary.LittleEndian.PutUint16(data[offset:], uint16(len(node.keys)))
	offset += 2

	binary.LittleEndian.PutUint64(data[offset:], uint64(localOrInvalid(node.parent)))
	offset += 8

	binary.LittleEndian.PutUint64(data[offset:], uint64(localOrInvalid(node.next)))
	offset += 8

	offset += 7 // reserved

	for _, key := range node.keys {
		keyLen := len(key)
		if keyLen > MaxKeyLen {
			return fmt.Errorf("serializeNode: key too long (%d bytes, max %d)", keyLen, MaxKeyLen)
		}
		if offset+2+keyLen > page.PageSize {
			return fmt.Errorf("serializeNode: page overflow while writing keys")
		}
		binary.LittleEndian.PutUint16(data[offset:], uint16(keyLen))
		offset += 2
		copy(data[offset:], key)
		offset += keyLen
	}

	if node.isLeaf() {
		for _, val := range node.values {
			valLen := len(val)
			if valLen > MaxValLen {
				return fmt.Errorf("serializeNode: value too long (%d bytes, max %d)", valLen, MaxValLen)
			}
			if offset+2+valLen > page.PageSize {
				return fmt.Errorf("serializeNode: page overflow while writing values")
			}
			binary.LittleEndian.PutUint16(data[offset:], uint16(valLen))
			offset += 2
			copy(data[offset:], val)
			offset += valLen
		}
	} else {
		for _, childID := range node.children {
			if offset+8 > page.PageSize {
				return fmt.Errorf("serializeNode: page overflow while writing children")
			}
			binary.LittleEndian.PutUint64(data[offset:], uint64(localOrInvalid(childID)))
			offset += 8
		}
	}

	return nil
}

func DeserializeNode(data []byte, fileID uint32) (*Node, error) {
	if len(data) != page.PageSize {
		return nil, fmt.Errorf("deserializeNode: data must be %d bytes", page.PageSize)
	}

	node := &Node{}
	offset := 0

	localPageID := int64(binary.LittleEndian.Uint64(data[offset:]))
	node.pageID = globalOf(fileID, localPageID)
	offset += 8

	offset += 1 // page-type stamp

	if data[offset] == 1 {
		node.nodeType = NodeLeaf
	} else {
		node.nodeType = NodeInternal
	}
	offset += 1

	numKeys := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	localParent := int64(binary.LittleEndian.Uint64(data[offset:]))
	node.parent = globalOrInvalid(fileID, localParent)
	offset += 8

	localNext := int64(binary.LittleEndian.Uint64(data[offset:]))
	node.next = globalOrInvalid(fileID, localNext)
	offset += 8

	offset += 7 // reserved

	node.keys = make([][]byte, 0, numKeys)
	for i := 0; i < numKeys; i++ {
		if offset+2 > page.PageSize {
			return nil, fmt.Errorf("deserializeNode: page overflow reading key %d length", i)
		}
		keyLen := int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2
		if offset+keyLen > page.PageSize {
			return nil, fmt.Errorf("deserializeNode: page overflow reading key %d data", i)
		}
		key := make([]byte, keyLen)
		copy(key, data[offset:offset+keyLen])
		offset += keyLen
		node.keys = append(node.keys, key)
	}

	if node.isLeaf() {
		node.values = make([][]byte, 0, numKeys)
		for i := 0; i < numKeys; i++ {
			if offset+2 > page.PageSize {
				return nil, fmt.Errorf("deserializeNode: page overflow reading value %d length", i)
			}
			valLen := int(binary.LittleEndian.Uint16(data[offset:]))
			offset += 2
			if offset+valLen > page.PageSize {
				return nil, fmt.Errorf("deserializeNode: page overflow reading value %d data", i)
			}
			val := make([]byte, valLen)
			copy(val, data[offset:offset+valLen])
			offset += valLen
			node.values = append(node.values, val)
		}
	} else {
		node.children = make([]int64, 0, numKeys+1)
		for i := 0; i <= numKeys; i++ {
			if offset+8 > page.PageSize {
				return nil, fmt.Errorf("deserializeNode: page overflow reading child %d", i)
			}
			localChild := int64(binary.LittleEndian.Uint64(data[offset:]))
			node.children = append(node.children, globalOrInvalid(fileID, localChild))
			offset += 8
		}
	}

	return node, nil
}

func localOrInvalid(globalID int64) int64 {
	if globalID == InvalidPageID {
		return -1
	}
	return globalID & 0xFFFFFFFF
}

func globalOrInvalid(fileID uint32, localID int64) int64 {
	if localID < 0 {
		return InvalidPageID
	}
	return globalOf(fileID, localID)
}

func globalOf(fileID uint32, localID int64) int64 {
	return int64(fileID)<<32 | (localID & 0xFFFFFFFF)
}
