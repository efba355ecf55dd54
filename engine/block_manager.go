package engine

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Block is one KV cache block.
type Block struct {
	BlockID  int
	RefCount int
	Hash     uint64
	TokenIDs []int
}

// update records the hash and contents of a now-full block.
func (b *Block) update(hash uint64, tokenIDs []int) {
	b.Hash = hash
	b.TokenIDs = make([]int, len(tokenIDs))
	copy(b.TokenIDs, tokenIDs)
}

// reset prepares a block for reuse by a new owner.
func (b *Block) reset() {
	b.RefCount = 1
	b.Hash = 0
	b.TokenIDs = nil
}

// BlockManager tracks KV cache blocks and shares full blocks between
// sequences with a common prefix.
type BlockManager struct {
	blockSize     int
	blocks        []*Block
	hashToBlockID map[uint64]int
	freeBlockIDs  []int
	usedBlockIDs  map[int]bool
}

// NewBlockManager creates a manager over numBlocks blocks of blockSize tokens.
func NewBlockManager(numBlocks, blockSize int) *BlockManager {
	blocks := make([]*Block, numBlocks)
	freeBlockIDs := make([]int, numBlocks)
	for i := range blocks {
		blocks[i] = &Block{BlockID: i}
		freeBlockIDs[i] = i
	}

	return &BlockManager{
		blockSize:     blockSize,
		blocks:        blocks,
		hashToBlockID: make(map[uint64]int),
		freeBlockIDs:  freeBlockIDs,
		usedBlockIDs:  make(map[int]bool),
	}
}

// ComputeHash hashes a full block of token ids chained onto the hash of the
// preceding block, so equal prefixes map to equal block chains.
func (bm *BlockManager) ComputeHash(tokenIDs []int, prefixHash uint64) uint64 {
	h := xxhash.New()

	var buf [8]byte
	if prefixHash != 0 {
		binary.LittleEndian.PutUint64(buf[:], prefixHash)
		h.Write(buf[:])
	}
	for _, tokenID := range tokenIDs {
		binary.LittleEndian.PutUint32(buf[:4], uint32(tokenID))
		h.Write(buf[:4])
	}

	return h.Sum64()
}

// takeBlock claims the given block id, removing it from the free list.
func (bm *BlockManager) takeBlock(blockID int) *Block {
	block := bm.blocks[blockID]
	if block.RefCount != 0 {
		panic("block is already allocated")
	}
	block.reset()

	for i, id := range bm.freeBlockIDs {
		if id == blockID {
			bm.freeBlockIDs = append(bm.freeBlockIDs[:i], bm.freeBlockIDs[i+1:]...)
			break
		}
	}
	bm.usedBlockIDs[blockID] = true
	return block
}

// releaseBlock returns a block with no remaining references to the free list.
func (bm *BlockManager) releaseBlock(blockID int) {
	if bm.blocks[blockID].RefCount != 0 {
		panic("block still has references")
	}
	delete(bm.usedBlockIDs, blockID)
	bm.freeBlockIDs = append(bm.freeBlockIDs, blockID)
}

// cachedBlockID looks up a block carrying exactly the given full-block
// contents, or -1 on a cache miss.
func (bm *BlockManager) cachedBlockID(hash uint64, tokenIDs []int) int {
	blockID, ok := bm.hashToBlockID[hash]
	if !ok {
		return -1
	}
	cached := bm.blocks[blockID].TokenIDs
	if len(cached) != len(tokenIDs) {
		return -1
	}
	for i, tid := range tokenIDs {
		if cached[i] != tid {
			return -1
		}
	}
	return blockID
}

// CanAllocate reports whether enough free blocks exist for the sequence.
func (bm *BlockManager) CanAllocate(seq *Sequence) bool {
	return len(bm.freeBlockIDs) >= seq.NumBlocks()
}

// Allocate assigns blocks to a sequence, reusing prefix-cached blocks where
// the hash chain matches. Once one block misses, every later block is a miss
// as well since the chain diverged.
func (bm *BlockManager) Allocate(seq *Sequence) {
	if len(seq.BlockTable) > 0 {
		panic("sequence already has blocks allocated")
	}

	var chainHash uint64
	cacheMiss := false

	for i := 0; i < seq.NumBlocks(); i++ {
		tokenIDs := seq.Block(i)

		// Only full blocks participate in prefix caching.
		if len(tokenIDs) == bm.blockSize {
			chainHash = bm.ComputeHash(tokenIDs, chainHash)
		} else {
			chainHash = 0
		}

		blockID := -1
		if chainHash != 0 && !cacheMiss {
			blockID = bm.cachedBlockID(chainHash, tokenIDs)
		}
		if blockID == -1 {
			cacheMiss = true
		}

		if cacheMiss {
			blockID = bm.freeBlockIDs[0]
			bm.takeBlock(blockID)
		} else {
			seq.NumCachedTokens += bm.blockSize
			if bm.usedBlockIDs[blockID] {
				bm.blocks[blockID].RefCount++
			} else {
				bm.takeBlock(blockID)
			}
		}

		if chainHash != 0 {
			bm.blocks[blockID].update(chainHash, tokenIDs)
			bm.hashToBlockID[chainHash] = blockID
		}

		seq.BlockTable = append(seq.BlockTable, blockID)
	}
}

// Deallocate releases a sequence's blocks, freeing those whose reference
// count drops to zero.
func (bm *BlockManager) Deallocate(seq *Sequence) {
	for i := len(seq.BlockTable) - 1; i >= 0; i-- {
		blockID := seq.BlockTable[i]
		block := bm.blocks[blockID]
		block.RefCount--
		if block.RefCount == 0 {
			bm.releaseBlock(blockID)
		}
	}

	seq.NumCachedTokens = 0
	seq.BlockTable = seq.BlockTable[:0]
}

// CanAppend reports whether one more token fits without starving the pool.
func (bm *BlockManager) CanAppend(seq *Sequence) bool {
	if seq.Len()%bm.blockSize == 1 {
		return len(bm.freeBlockIDs) >= 1
	}
	return true
}

// MayAppend reserves block space for the token just appended to the
// sequence, sealing the previous block's hash when it filled up.
func (bm *BlockManager) MayAppend(seq *Sequence) {
	blockTable := seq.BlockTable
	lastBlock := bm.blocks[blockTable[len(blockTable)-1]]

	switch seq.Len() % bm.blockSize {
	case 1:
		// First token of a fresh block.
		if lastBlock.Hash == 0 {
			panic("previous block should have been sealed")
		}
		blockID := bm.freeBlockIDs[0]
		bm.takeBlock(blockID)
		seq.BlockTable = append(seq.BlockTable, blockID)
	case 0:
		// Block just filled, seal it.
		if lastBlock.Hash != 0 {
			panic("full block already sealed")
		}
		tokenIDs := seq.Block(seq.NumBlocks() - 1)
		var prefixHash uint64
		if len(blockTable) > 1 {
			prefixHash = bm.blocks[blockTable[len(blockTable)-2]].Hash
		}
		h := bm.ComputeHash(tokenIDs, prefixHash)
		lastBlock.update(h, tokenIDs)
		bm.hashToBlockID[h] = lastBlock.BlockID
	default:
		if lastBlock.Hash != 0 {
			panic("partial block should not be sealed")
		}
	}
}
