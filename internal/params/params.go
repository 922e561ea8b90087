package params

const (
	// DigestBits is the minimum output size accepted for the hash primitive
	// used to encode messages.
	DigestBits  = 256
	DigestBytes = DigestBits / 8 // = 32

	// MaxBlindIterations bounds the rejection sampling of blinding factors.
	// Draws have the bit length of N, so for an honest RSA modulus a draw is
	// rejected with probability < 1/2,
	// so reaching this bound means the modulus or the randomness is broken.
	MaxBlindIterations = 255

	// MaxReadAttempts is the number of times a failing random source is retried
	// before giving up.
	MaxReadAttempts = 255

	// PrimalityIterations is the number of Miller-Rabin rounds used when validating
	// the factors of a key.
	//
	// 20 is the same number that Go uses internally.
	PrimalityIterations = 20

	// HexRadix is the radix used for every integer crossing the protocol boundary.
	HexRadix = 16
)
